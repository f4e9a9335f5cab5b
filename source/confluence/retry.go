// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package confluence

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

// backoff describes a retry policy.
type backoff struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	// shouldRetry decides whether a failed attempt is repeated.
	shouldRetry func(error) bool
	logger      *slog.Logger
}

// delay returns the pause before the attempt following attempt n (1-based):
// baseDelay * 2^(n-1) with jitter, raised to a Retry-After hint and capped at maxDelay.
func (b backoff) delay(attempt int, err error) time.Duration {
	d := b.baseDelay
	for i := 1; i < attempt && d < b.maxDelay; i++ {
		d *= 2
	}
	if d > 0 {
		// Jitter into [d/2, d)
		d = d/2 + rand.N(d/2+1)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > d {
		d = apiErr.RetryAfter
	}
	if b.maxDelay > 0 && d > b.maxDelay {
		d = b.maxDelay
	}
	return d
}

// retry runs operation until it succeeds, fails with an error shouldRetry
// rejects, the attempts are exhausted or ctx ends.
// Returns the error from the last attempt if all attempts fail.
func (b backoff) retry(ctx context.Context, operation func() error) error {
	if b.maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				b.logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if b.shouldRetry != nil && !b.shouldRetry(lastErr) {
			return lastErr
		}

		// Don't sleep after the last attempt
		if attempt == b.maxAttempts {
			break
		}

		wait := b.delay(attempt, lastErr)
		b.logger.Warn("operation failed, will retry", "attempt", attempt, "maxAttempts", b.maxAttempts, "delay", wait, "err", lastErr)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
