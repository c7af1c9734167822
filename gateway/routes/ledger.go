package routes

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"reflectledger/crypto"
	"reflectledger/integrations/indexer"
	"reflectledger/native/fees"
	"reflectledger/native/token"
)

type ledgerAPI struct {
	host     *token.Host
	indexer  *indexer.Indexer
	onCommit func(*token.Engine) error
	logger   *slog.Logger
}

type tokenResponse struct {
	Name                   string            `json:"name"`
	Symbol                 string            `json:"symbol"`
	Decimals               uint8             `json:"decimals"`
	TotalSupply            string            `json:"totalSupply"`
	Owner                  string            `json:"owner"`
	Contract               string            `json:"contract"`
	Holders                int               `json:"holders"`
	PresaleCompleted       bool              `json:"presaleCompleted"`
	VestStart              *time.Time        `json:"vestStart,omitempty"`
	HalfTax                bool              `json:"halfTax"`
	AutoSwap               bool              `json:"autoSwap"`
	AutoDividendProcessing bool              `json:"autoDividendProcessing"`
	SwapThreshold          string            `json:"swapThreshold"`
	PendingSwap            string            `json:"pendingSwap"`
	MaxWalletTokens        string            `json:"maxWalletTokens"`
	FeesBps                map[string]uint32 `json:"feesBps"`
	Pairs                  []string          `json:"pairs"`
}

type dividendPosition struct {
	Withdrawable string     `json:"withdrawable"`
	Withdrawn    string     `json:"withdrawn"`
	Cumulative   string     `json:"cumulative"`
	Shares       string     `json:"shares"`
	NextClaim    *time.Time `json:"nextClaim,omitempty"`
	IterationsTo int        `json:"iterationsUntilProcessed"`
}

type vestingPosition struct {
	Vested   string `json:"vested"`
	Released string `json:"released"`
	Unlocked string `json:"unlocked"`
}

type accountResponse struct {
	Address               string           `json:"address"`
	Hex                   string           `json:"hex"`
	Balance               string           `json:"balance"`
	ExcludedFromFee       bool             `json:"excludedFromFee"`
	ExcludedFromDividends bool             `json:"excludedFromDividends"`
	ExcludedFromWalletCap bool             `json:"excludedFromWalletCap"`
	CanTradeInPresale     bool             `json:"canTradeInPresale"`
	LiquidityProvider     bool             `json:"liquidityProvider"`
	AutomatedMarketMaker  bool             `json:"automatedMarketMakerPair"`
	LastTransfer          *time.Time       `json:"lastTransfer,omitempty"`
	Dividends             dividendPosition `json:"dividends"`
	Vesting               *vestingPosition `json:"vesting,omitempty"`
}

type allowanceResponse struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type dividendsResponse struct {
	TotalDistributed   string `json:"totalDistributed"`
	TotalWithdrawn     string `json:"totalWithdrawn"`
	TotalShares        string `json:"totalShares"`
	ClaimWaitSeconds   int64  `json:"claimWaitSeconds"`
	LastProcessedIndex int    `json:"lastProcessedIndex"`
	Holders            int    `json:"holders"`
}

type eventResponse struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (api *ledgerAPI) token(w http.ResponseWriter, r *http.Request) {
	var out tokenResponse
	_ = api.host.View(func(e *token.Engine) error {
		out = tokenResponse{
			Name:                   e.Name(),
			Symbol:                 e.Symbol(),
			Decimals:               e.Decimals(),
			TotalSupply:            e.TotalSupply().String(),
			Owner:                  accountString(e.Owner()),
			Contract:               accountString(e.Contract()),
			Holders:                e.HolderCount(),
			PresaleCompleted:       e.PresaleCompleted(),
			VestStart:              optionalTime(e.VestStart()),
			HalfTax:                e.HalfTax(),
			AutoSwap:               e.AutoSwap(),
			AutoDividendProcessing: e.AutoDividendProcessing(),
			SwapThreshold:          e.SwapThreshold().String(),
			PendingSwap:            e.PendingSwap().String(),
			MaxWalletTokens:        e.MaxWalletTokens().String(),
			FeesBps:                make(map[string]uint32, len(fees.Components)),
		}
		for _, c := range fees.Components {
			out.FeesBps[string(c)] = e.Tax(c)
		}
		for _, pair := range e.Pairs() {
			out.Pairs = append(out.Pairs, accountString(pair))
		}
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

func (api *ledgerAPI) account(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAccount(w, r, "address")
	if !ok {
		return
	}
	var out accountResponse
	_ = api.host.View(func(e *token.Engine) error {
		flags := e.AccountOf(addr)
		info := e.Tracker().AccountInfo(addr)
		out = accountResponse{
			Address:               accountString(addr),
			Hex:                   addr.Hex(),
			Balance:               e.BalanceOf(addr).String(),
			ExcludedFromFee:       flags.ExcludedFromFee,
			ExcludedFromDividends: e.IsExcludedFromDividends(addr),
			ExcludedFromWalletCap: e.IsExcludedFromWalletCap(addr),
			CanTradeInPresale:     flags.CanTradeInPresale,
			LiquidityProvider:     flags.LiquidityProvider,
			AutomatedMarketMaker:  e.IsAutomatedMarketMakerPair(addr),
			LastTransfer:          optionalTime(flags.LastTransfer),
			Dividends: dividendPosition{
				Withdrawable: info.Withdrawable.String(),
				Withdrawn:    info.Withdrawn.String(),
				Cumulative:   info.Accumulative.String(),
				Shares:       info.Shares.String(),
				NextClaim:    optionalTime(info.NextClaim),
				IterationsTo: info.IterationsTo,
			},
		}
		if grant, ok := e.Policy().Grant(addr); ok {
			out.Vesting = &vestingPosition{
				Vested:   grant.Vested.String(),
				Released: grant.Released.String(),
				Unlocked: e.Policy().Unlocked(addr, e.Now()).String(),
			}
		}
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

func (api *ledgerAPI) allowance(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAccount(w, r, "address")
	if !ok {
		return
	}
	spender, ok := pathAccount(w, r, "spender")
	if !ok {
		return
	}
	out := allowanceResponse{Owner: accountString(owner), Spender: accountString(spender)}
	_ = api.host.View(func(e *token.Engine) error {
		out.Amount = e.Allowance(owner, spender).String()
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

func (api *ledgerAPI) dividends(w http.ResponseWriter, r *http.Request) {
	var out dividendsResponse
	_ = api.host.View(func(e *token.Engine) error {
		tracker := e.Tracker()
		out = dividendsResponse{
			TotalDistributed:   tracker.TotalDistributed().String(),
			TotalWithdrawn:     tracker.TotalWithdrawn().String(),
			TotalShares:        tracker.TotalShares().String(),
			ClaimWaitSeconds:   int64(tracker.ClaimWait() / time.Second),
			LastProcessedIndex: tracker.LastProcessedIndex(),
			Holders:            e.HolderCount(),
		}
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

func (api *ledgerAPI) events(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := indexer.Filter{Type: strings.TrimSpace(query.Get("type"))}
	if raw := query.Get("account"); raw != "" {
		addr, err := crypto.ParseAccount(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.Account = addr
	}
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		filter.Limit = n
	}
	if raw := query.Get("after"); raw != "" {
		seq, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("after must be an event sequence number"))
			return
		}
		filter.AfterSeq = seq
	}

	records, err := api.indexer.Query(r.Context(), filter)
	if err != nil {
		api.logger.Error("gateway event query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, errors.New("event query failed"))
		return
	}
	out := make([]eventResponse, 0, len(records))
	for _, record := range records {
		ev, err := record.Event()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, eventResponse{Seq: record.Seq, Type: ev.Type, Attributes: ev.Attributes, CreatedAt: record.CreatedAt.UTC()})
	}
	writeJSON(w, http.StatusOK, out)
}

func pathAccount(w http.ResponseWriter, r *http.Request, param string) (common.Address, bool) {
	addr, err := crypto.ParseAccount(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return common.Address{}, false
	}
	return addr, true
}

func accountString(addr common.Address) string {
	return crypto.FromCommon(addr).String()
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
