package finance_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wuwenbin0122/finbot/internal/auth"
	"github.com/wuwenbin0122/finbot/internal/finance"
	"github.com/wuwenbin0122/finbot/internal/models"
)

type stubSource struct {
	profile  *models.UserProfile
	holdings []models.Holding
	txErr    error
	calls    int
}

func (s *stubSource) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	s.calls++
	return s.profile, nil
}

func (s *stubSource) ListTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	return nil, s.txErr
}

func (s *stubSource) ListHoldings(ctx context.Context, userID string) ([]models.Holding, error) {
	return s.holdings, nil
}

type mapCache map[string][]byte

func (m mapCache) GetSummary(ctx context.Context, userID string) ([]byte, error) {
	return m[userID], nil
}

func (m mapCache) SetSummary(ctx context.Context, userID string, payload []byte, ttl time.Duration) error {
	m[userID] = payload
	return nil
}

func (m mapCache) InvalidateSummary(ctx context.Context, userID string) error {
	delete(m, userID)
	return nil
}

func TestAggregatorRequiresIdentity(t *testing.T) {
	agg := finance.NewAggregator(&stubSource{}, nil)

	if _, err := agg.Summary(context.Background(), auth.Identity{}); !errors.Is(err, finance.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if got := agg.Context(context.Background(), auth.Identity{}); got != finance.NoDataText {
		t.Fatalf("expected no-data placeholder, got %q", got)
	}
}

func TestAggregatorDatastoreFailure(t *testing.T) {
	profile := models.DefaultProfile()
	agg := finance.NewAggregator(&stubSource{profile: &profile, txErr: errors.New("connection refused")}, nil)

	_, err := agg.Summary(context.Background(), auth.Identity{UserID: "u1"})
	if !errors.Is(err, finance.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestAggregatorMissingProfile(t *testing.T) {
	agg := finance.NewAggregator(&stubSource{}, nil)

	if _, err := agg.Summary(context.Background(), auth.Identity{UserID: "u1"}); !errors.Is(err, finance.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestAggregatorContextIncludesHoldings(t *testing.T) {
	profile := models.DefaultProfile()
	profile.Currency = "USD"
	src := &stubSource{
		profile:  &profile,
		holdings: []models.Holding{{Ticker: "VTI", Value: dec("1000"), Gain: dec("100")}},
	}
	agg := finance.NewAggregator(src, nil)

	text := agg.Context(context.Background(), auth.Identity{UserID: "u1"})
	if !strings.Contains(text, "VTI") {
		t.Fatalf("expected holding ticker in context:\n%s", text)
	}
	if !strings.Contains(text, "11.1%") {
		t.Fatalf("expected gain percent in context:\n%s", text)
	}
	if !strings.Contains(text, "$1,000.00") {
		t.Fatalf("expected formatted portfolio value in context:\n%s", text)
	}
}

func TestAggregatorCachesSummary(t *testing.T) {
	profile := models.DefaultProfile()
	src := &stubSource{profile: &profile}
	cache := mapCache{}
	agg := finance.NewAggregator(src, nil, finance.WithCache(cache, time.Minute))
	id := auth.Identity{UserID: "u1"}

	for i := 0; i < 2; i++ {
		if _, err := agg.Summary(context.Background(), id); err != nil {
			t.Fatalf("summary failed: %v", err)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one datastore read, got %d", src.calls)
	}

	agg.Invalidate(context.Background(), "u1")
	if _, err := agg.Summary(context.Background(), id); err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if src.calls != 2 {
		t.Fatalf("expected read after invalidation, got %d", src.calls)
	}
}
