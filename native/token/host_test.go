package token

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostSerialisesAccess(t *testing.T) {
	h := newBareEngine(t, nil)
	openMarket(t, h)
	h.fund(alice, whole(1_000))
	host := NewHost(h.engine)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = host.Update(func(e *Engine) error {
				return e.Transfer(h.ctx, alice, bob, whole(1))
			})
		}()
		go func() {
			defer wg.Done()
			_ = host.View(func(e *Engine) error {
				total := e.BalanceOf(alice)
				total.Add(total, e.BalanceOf(bob))
				if total.Cmp(whole(1_000)) != 0 {
					t.Errorf("torn read: alice+bob = %s", total)
				}
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, host.View(func(e *Engine) error {
		requireBig(t, whole(950), e.BalanceOf(alice))
		requireBig(t, whole(50), e.BalanceOf(bob))
		return nil
	}))
}
