package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/vitwit/x402-client/logger"
	"github.com/vitwit/x402-client/types"
)

// balanceTTL bounds how stale a cached balance read may be. Balances are
// read-mostly; transfers invalidate the cache explicitly.
const balanceTTL = 5 * time.Second

// Session holds the single active wallet backend. Activating a backend
// tears down the previous one and drops its balance cache: balances are
// never shared across backend kinds, since addresses differ per kind.
type Session struct {
	mu      sync.RWMutex
	backend Backend

	// submitMu serializes transfers on the active wallet from submission
	// through terminal status, so no two transfers race on nonce or
	// balance.
	submitMu sync.Mutex

	balances *balanceCache
	log      logger.Logger
}

func NewSession(log logger.Logger) *Session {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Session{
		balances: newBalanceCache(),
		log:      log,
	}
}

// Activate installs a backend, closing any previous one first.
func (s *Session) Activate(b Backend) {
	s.mu.Lock()
	prev := s.backend
	s.backend = b
	s.balances.reset()
	s.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			s.log.Warn("closing previous wallet backend failed", map[string]any{
				"kind":  prev.Kind().String(),
				"error": err.Error(),
			})
		}
		s.log.Info("wallet backend switched", map[string]any{
			"from": prev.Kind().String(),
			"to":   b.Kind().String(),
		})
	}
}

// Active returns the current backend, or nil if none is connected.
func (s *Session) Active() Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}

// Identity returns the active wallet identity.
func (s *Session) Identity() (types.WalletIdentity, bool) {
	b := s.Active()
	if b == nil {
		return types.WalletIdentity{}, false
	}
	return b.Identity(), true
}

// Balance reads the active wallet's balance with short-lived caching and
// deduplication of concurrent reads for the same token.
func (s *Session) Balance(ctx context.Context, token types.Token) (decimal.Decimal, error) {
	b := s.Active()
	if b == nil {
		return decimal.Zero, fmt.Errorf("no wallet connected")
	}
	return s.balances.get(ctx, token, b)
}

// AcquireSubmission takes the per-wallet submission lock and returns its
// release, which also invalidates the balance cache. The orchestrator
// holds the lock across the whole submit-then-confirm span; this is the
// only path through which transfers on the active wallet are serialized.
func (s *Session) AcquireSubmission() (release func()) {
	s.submitMu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.balances.reset()
			s.submitMu.Unlock()
		})
	}
}

// Close tears down the active backend, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	s.balances.reset()
	return err
}

type cachedBalance struct {
	value   decimal.Decimal
	fetched time.Time
}

// balanceCache scopes entries and in-flight fetches to a generation bumped
// on every reset, so a read against a newly activated backend never joins
// or inherits a fetch started against a torn-down one.
type balanceCache struct {
	mu      sync.Mutex
	gen     uint64
	entries map[string]cachedBalance
	group   singleflight.Group
}

func newBalanceCache() *balanceCache {
	return &balanceCache{entries: make(map[string]cachedBalance)}
}

func (c *balanceCache) get(ctx context.Context, token types.Token, b Backend) (decimal.Decimal, error) {
	c.mu.Lock()
	gen := c.gen
	key := fmt.Sprintf("%d/%s", gen, token.Address)
	if entry, ok := c.entries[key]; ok && time.Since(entry.fetched) < balanceTTL {
		c.mu.Unlock()
		return entry.value, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := b.Balance(ctx, token)
		if err != nil {
			return decimal.Zero, err
		}
		c.mu.Lock()
		// A reset since the fetch started makes this result stale.
		if c.gen == gen {
			c.entries[key] = cachedBalance{value: value, fetched: time.Now()}
		}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return v.(decimal.Decimal), nil
}

func (c *balanceCache) reset() {
	c.mu.Lock()
	c.gen++
	c.entries = make(map[string]cachedBalance)
	c.mu.Unlock()
}
