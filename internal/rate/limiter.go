// Package rate implementa throttling de ventana fija sobre el state store.
// Se usa para el login (email+IP) y los endpoints de envío de códigos.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/janus/internal/cache"
)

// Result es el veredicto de una pasada por el limiter.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// FixedWindow: INCR con TTL en el primer hit, keyed por ventana truncada.
type FixedWindow struct {
	store  cache.Client
	prefix string
	max    int64
	window time.Duration
}

func NewFixedWindow(store cache.Client, prefix string, max int64, window time.Duration) *FixedWindow {
	if prefix == "" {
		prefix = "rl"
	}
	return &FixedWindow{store: store, prefix: prefix, max: max, window: window}
}

func (l *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	storeKey := fmt.Sprintf("%s:%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	hits, err := l.store.Incr(ctx, storeKey, l.window)
	if err != nil {
		return Result{}, err
	}

	remaining := l.max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= l.max,
		Remaining:   remaining,
		CurrentHits: hits,
	}
	if !res.Allowed {
		res.RetryAfter = winStart.Add(l.window).Sub(now)
	}
	return res, nil
}
