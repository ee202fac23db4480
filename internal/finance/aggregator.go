// Package finance aggregates a user's transactions and holdings into the
// summary the assistant is grounded on.
package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/finbot/internal/auth"
	"github.com/wuwenbin0122/finbot/internal/models"
)

// ErrNoData means no summary could be produced: no identity, no profile, or a
// datastore failure. Callers render it as "no data available", never as zeros.
var ErrNoData = errors.New("finance: no data available")

// Source reads the raw records for one user.
type Source interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	ListHoldings(ctx context.Context, userID string) ([]models.Holding, error)
}

// Cache stores encoded summaries per user.
type Cache interface {
	GetSummary(ctx context.Context, userID string) ([]byte, error)
	SetSummary(ctx context.Context, userID string, payload []byte, ttl time.Duration) error
	InvalidateSummary(ctx context.Context, userID string) error
}

type Aggregator struct {
	source Source
	cache  Cache
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time
}

type Option func(*Aggregator)

// WithCache enables summary caching for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.cache = cache
		a.ttl = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(source Source, logger *zap.SugaredLogger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	a := &Aggregator{source: source, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Summary computes the financial summary for id. Any lookup failure yields
// ErrNoData.
func (a *Aggregator) Summary(ctx context.Context, id auth.Identity) (*Summary, error) {
	if !id.Authenticated() {
		return nil, ErrNoData
	}

	if cached := a.cached(ctx, id.UserID); cached != nil {
		return cached, nil
	}

	profile, err := a.source.GetProfile(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load profile: %v", ErrNoData, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: no profile", ErrNoData)
	}

	txs, err := a.source.ListTransactions(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load transactions: %v", ErrNoData, err)
	}

	holdings, err := a.source.ListHoldings(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load holdings: %v", ErrNoData, err)
	}

	summary := Summarize(*profile, txs, holdings, a.now())
	a.store(ctx, id.UserID, summary)
	return summary, nil
}

// Context returns the financial block for a session's system instruction.
// It degrades to the no-data placeholder rather than failing.
func (a *Aggregator) Context(ctx context.Context, id auth.Identity) string {
	summary, err := a.Summary(ctx, id)
	if err != nil {
		a.logger.Infow("financial context unavailable", "user_id", id.UserID, "error", err)
		return FormatContext(nil)
	}
	return FormatContext(summary)
}

// Invalidate drops the cached summary after a ledger or profile write.
func (a *Aggregator) Invalidate(ctx context.Context, userID string) {
	if a.cache == nil || userID == "" {
		return
	}
	if err := a.cache.InvalidateSummary(ctx, userID); err != nil {
		a.logger.Warnw("invalidate summary cache", "user_id", userID, "error", err)
	}
}

func (a *Aggregator) cached(ctx context.Context, userID string) *Summary {
	if a.cache == nil {
		return nil
	}
	payload, err := a.cache.GetSummary(ctx, userID)
	if err != nil {
		a.logger.Warnw("read summary cache", "user_id", userID, "error", err)
		return nil
	}
	if len(payload) == 0 {
		return nil
	}
	var s Summary
	if err := json.Unmarshal(payload, &s); err != nil {
		a.logger.Warnw("decode cached summary", "user_id", userID, "error", err)
		return nil
	}
	return &s
}

func (a *Aggregator) store(ctx context.Context, userID string, s *Summary) {
	if a.cache == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		a.logger.Warnw("encode summary", "user_id", userID, "error", err)
		return
	}
	if err := a.cache.SetSummary(ctx, userID, payload, a.ttl); err != nil {
		a.logger.Warnw("write summary cache", "user_id", userID, "error", err)
	}
}
