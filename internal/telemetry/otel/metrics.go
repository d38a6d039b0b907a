package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of wallet metrics.
const meterName = "ussd-wallet"

// Metrics records wallet counters. The zero value and a nil *Metrics are no-ops.
type Metrics struct {
	turns     metric.Int64Counter
	transfers metric.Int64Counter
	moved     metric.Int64Counter
	redeemed  metric.Int64Counter
	failures  metric.Int64Counter
}

// NewMetrics creates counters on the given MeterProvider. A nil provider yields nil (no-op) metrics.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		return nil, nil
	}
	m := mp.Meter(meterName)
	var (
		out Metrics
		err error
	)
	if out.turns, err = m.Int64Counter("ussd.turns", metric.WithDescription("USSD turns handled, by outcome")); err != nil {
		return nil, err
	}
	if out.transfers, err = m.Int64Counter("wallet.transfers", metric.WithDescription("Completed person-to-person transfers")); err != nil {
		return nil, err
	}
	if out.moved, err = m.Int64Counter("wallet.transfer.amount", metric.WithDescription("Total amount moved by transfers")); err != nil {
		return nil, err
	}
	if out.redeemed, err = m.Int64Counter("wallet.vouchers.redeemed", metric.WithDescription("Vouchers redeemed")); err != nil {
		return nil, err
	}
	if out.failures, err = m.Int64Counter("wallet.auth.failures", metric.WithDescription("Rejected PIN and OTP attempts")); err != nil {
		return nil, err
	}
	return &out, nil
}

// Turn counts one USSD turn; final reports whether the response ended the session.
func (m *Metrics) Turn(ctx context.Context, final bool) {
	if m == nil || m.turns == nil {
		return
	}
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("final", final)))
}

// Transfer counts a completed transfer of amount.
func (m *Metrics) Transfer(ctx context.Context, amount int64) {
	if m == nil || m.transfers == nil {
		return
	}
	m.transfers.Add(ctx, 1)
	m.moved.Add(ctx, amount)
}

// VoucherRedeemed counts a successful redemption.
func (m *Metrics) VoucherRedeemed(ctx context.Context) {
	if m == nil || m.redeemed == nil {
		return
	}
	m.redeemed.Add(ctx, 1)
}

// AuthFailure counts a rejected credential; kind is "pin" or "otp".
func (m *Metrics) AuthFailure(ctx context.Context, kind string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
