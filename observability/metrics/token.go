package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type TokenMetrics struct {
	transfers        *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	feeTokens        *prometheus.CounterVec
	swapLegs         *prometheus.CounterVec
	dividendsPaidIn  prometheus.Counter
	dividendsClaimed *prometheus.CounterVec
	holders          prometheus.Gauge
	pendingSwap      prometheus.Gauge
}

var (
	tokenOnce     sync.Once
	tokenRegistry *TokenMetrics
)

// Token returns the lazily registered ledger metrics.
func Token() *TokenMetrics {
	tokenOnce.Do(func() {
		tokenRegistry = &TokenMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reflect",
				Subsystem: "token",
				Name:      "transfers_total",
				Help:      "Settled transfers segmented by kind and whether fees applied.",
			}, []string{"kind", "taxed"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reflect",
				Subsystem: "token",
				Name:      "rejections_total",
				Help:      "Transfers rejected by reason.",
			}, []string{"reason"}),
			feeTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reflect",
				Subsystem: "token",
				Name:      "fee_tokens_total",
				Help:      "Fee base units collected by component.",
			}, []string{"component"}),
			swapLegs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reflect",
				Subsystem: "token",
				Name:      "swap_legs_total",
				Help:      "Swap-and-liquify legs by stage and outcome.",
			}, []string{"stage", "outcome"}),
			dividendsPaidIn: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "reflect",
				Subsystem: "dividends",
				Name:      "distributed_total",
				Help:      "Dividend asset base units distributed to holders.",
			}),
			dividendsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "reflect",
				Subsystem: "dividends",
				Name:      "claimed_total",
				Help:      "Dividend asset base units withdrawn by claim mode.",
			}, []string{"mode"}),
			holders: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "reflect",
				Subsystem: "token",
				Name:      "holders",
				Help:      "Accounts holding a non-zero balance.",
			}),
			pendingSwap: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "reflect",
				Subsystem: "token",
				Name:      "pending_swap_tokens",
				Help:      "Fee base units waiting for the next swap leg.",
			}),
		}
		prometheus.MustRegister(
			tokenRegistry.transfers,
			tokenRegistry.rejections,
			tokenRegistry.feeTokens,
			tokenRegistry.swapLegs,
			tokenRegistry.dividendsPaidIn,
			tokenRegistry.dividendsClaimed,
			tokenRegistry.holders,
			tokenRegistry.pendingSwap,
		)
	})
	return tokenRegistry
}

func toFloat(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	return f
}

func (m *TokenMetrics) ObserveTransfer(kind string, taxed bool) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	label := "false"
	if taxed {
		label = "true"
	}
	m.transfers.WithLabelValues(kind, label).Inc()
}

func (m *TokenMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *TokenMetrics) AddFee(component string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.feeTokens.WithLabelValues(component).Add(toFloat(amount))
}

func (m *TokenMetrics) ObserveSwapLeg(stage string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.swapLegs.WithLabelValues(stage, outcome).Inc()
}

func (m *TokenMetrics) AddDistributed(amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.dividendsPaidIn.Add(toFloat(amount))
}

func (m *TokenMetrics) AddClaimed(automatic bool, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	mode := "manual"
	if automatic {
		mode = "automatic"
	}
	m.dividendsClaimed.WithLabelValues(mode).Add(toFloat(amount))
}

func (m *TokenMetrics) SetHolders(n int) {
	if m == nil {
		return
	}
	m.holders.Set(float64(n))
}

func (m *TokenMetrics) SetPendingSwap(amount *big.Int) {
	if m == nil {
		return
	}
	m.pendingSwap.Set(toFloat(amount))
}
