// Package notify delivers one-time codes to callers out of band.
package notify

import (
	"context"
	"errors"
	"log"
	"time"
)

// dispatchTimeout bounds a single asynchronous delivery.
const dispatchTimeout = 15 * time.Second

// Notifier delivers code to callerID. Delivery is unconfirmed; errors are for logging only.
type Notifier interface {
	Notify(ctx context.Context, callerID, code string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, callerID, code string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, callerID, code string) error {
	return f(ctx, callerID, code)
}

// LogNotifier writes a line per delivery to the process log. The code itself is only
// included when LogCodes is set (local development).
type LogNotifier struct {
	LogCodes bool
}

// Notify logs the delivery.
func (n LogNotifier) Notify(ctx context.Context, callerID, code string) error {
	if n.LogCodes {
		log.Printf("notify: [SMS to %s] Your Ubuntu Wallet OTP is %s", callerID, code)
		return nil
	}
	log.Printf("notify: [SMS to %s] OTP issued", callerID)
	return nil
}

// Multi delivers through every notifier and joins their errors.
type Multi []Notifier

// Notify calls each notifier in order.
func (m Multi) Notify(ctx context.Context, callerID, code string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, callerID, code); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DispatchAsync runs Notify in a goroutine with a timeout so the caller is not blocked.
// The goroutine uses context.Background() so request cancellation does not abort delivery.
// Errors are logged without the code.
func DispatchAsync(n Notifier, callerID, code string) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := n.Notify(ctx, callerID, code); err != nil {
			log.Printf("notify: delivery to %s failed: %v", callerID, err)
		}
	}()
}
