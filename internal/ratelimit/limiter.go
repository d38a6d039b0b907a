// Package ratelimit caps how many USSD turns a caller may send per window.
package ratelimit

import "context"

// Limiter decides whether key may proceed. When the backing store fails, implementations
// return true together with the error so traffic is not blocked by a limiter outage.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Noop allows everything.
type Noop struct{}

// Allow implements Limiter.
func (Noop) Allow(context.Context, string) (bool, error) { return true, nil }
