/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package enricher

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sql-lineage-describer/internal/genai"
)

// RetryOptions configures the retry behavior
type RetryOptions struct {
	MaxAttempts       int           // Maximum number of attempts, including the first
	InitialBackoff    time.Duration // Initial backoff duration
	MaxBackoff        time.Duration // Maximum backoff duration
	BackoffMultiplier float64       // Multiplier for exponential backoff
}

// DefaultRetryOptions waits 1s, then 2s, between three attempts.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:       3,
	InitialBackoff:    time.Second,
	MaxBackoff:        30 * time.Second,
	BackoffMultiplier: 2.0,
}

// sleepFunc pauses for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryableError determines if an error should trigger a retry.
// Only capacity failures of the text-generation service are transient.
func isRetryableError(err error) bool {
	return genai.IsCapacityError(err)
}

// backoffFor returns the wait after the given zero-based attempt.
func (o RetryOptions) backoffFor(attempt int) time.Duration {
	multiplier := o.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	backoff := time.Duration(float64(o.InitialBackoff) * math.Pow(multiplier, float64(attempt)))
	if o.MaxBackoff > 0 && backoff > o.MaxBackoff {
		backoff = o.MaxBackoff
	}
	return backoff
}

// withRetry executes the given operation with retry logic. There is no wait
// after the final attempt.
func withRetry[T any](ctx context.Context, opts RetryOptions, sleep sleepFunc, op func(context.Context) (T, error)) (T, error) {
	var lastErr error
	var result T

	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, &ErrCancelled{Msg: "operation cancelled by context", Err: err}
		}

		result, lastErr = op(ctx)
		if lastErr == nil {
			return result, nil
		}
		if !isRetryableError(lastErr) {
			return result, lastErr
		}
		if attempt == attempts-1 {
			break
		}

		backoff := opts.backoffFor(attempt)
		zap.S().Warnf("Operation failed on attempt %d with error: %v. Retrying in %v...", attempt+1, lastErr, backoff)
		if err := sleep(ctx, backoff); err != nil {
			return result, &ErrCancelled{Msg: "operation cancelled during backoff", Err: err}
		}
	}

	return result, &ErrRetriesExhausted{Msg: fmt.Sprintf("gave up after %d attempts", attempts), Err: lastErr}
}
