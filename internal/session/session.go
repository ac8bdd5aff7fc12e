// Package session keeps the numbered candidate list offered to a user until
// they answer with one of the numbers.
package session

import (
	"context"
	"strconv"
	"strings"
	"time"

	"preciobot/internal"
	"preciobot/internal/config"
	"preciobot/internal/util"
)

// Pending is the offer waiting for a numeric reply. Options are keyed "1"..n
// in the order the candidates were offered.
type Pending struct {
	Plan      internal.FinancingPlan
	Options   map[string]internal.CatalogRecord
	OfferedAt time.Time
}

// Ordered returns the options by number.
func (p Pending) Ordered() []internal.CatalogRecord {
	out := make([]internal.CatalogRecord, 0, len(p.Options))
	for i := 1; i <= len(p.Options); i++ {
		if r, ok := p.Options[strconv.Itoa(i)]; ok {
			out = append(out, r)
		}
	}
	return out
}

type Selection struct {
	Plan   internal.FinancingPlan
	Record internal.CatalogRecord
}

// Store holds at most one pending offer per conversation identity. A
// successful Resolve consumes the offer; concurrent resolves of the same
// offer yield one winner.
type Store interface {
	Offer(ctx context.Context, identity string, plan internal.FinancingPlan, candidates []internal.CatalogRecord) (Pending, error)
	Resolve(ctx context.Context, identity, token string) (Selection, bool, error)
	Clear(ctx context.Context, identity string) error
}

func NewPending(plan internal.FinancingPlan, candidates []internal.CatalogRecord, now time.Time) Pending {
	options := make(map[string]internal.CatalogRecord, len(candidates))
	for i, c := range candidates {
		options[strconv.Itoa(i+1)] = c
	}
	return Pending{Plan: plan, Options: options, OfferedAt: now}
}

// ChoiceKey reduces a reply to an option key ("01" becomes "1"). Anything
// that is not a plain positive number is rejected.
func ChoiceKey(token string) (string, bool) {
	s := strings.TrimSpace(token)
	if !util.IsNumeric(s) {
		return "", false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return "", false
	}
	return strconv.Itoa(n), true
}

// Open builds the store selected by SESSION_BACKEND. The returned close
// function releases backend connections.
func Open(ctx context.Context, cfg config.Config) (Store, func() error, error) {
	switch cfg.SessionBackend {
	case "redis":
		store, err := NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionIdleTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store := NewMemoryStore(cfg.SessionIdleTimeout)
		store.StartJanitor(ctx, janitorInterval(cfg.SessionIdleTimeout))
		return store, func() error { return nil }, nil
	}
}

func janitorInterval(idle time.Duration) time.Duration {
	if idle <= 0 {
		return 0
	}
	return min(max(idle/2, time.Second), time.Minute)
}
