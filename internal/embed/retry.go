package embed

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// DefaultMaxRetries is the number of attempts made for one embedding batch.
const DefaultMaxRetries = 3

// RetryableError indicates a transient embedding failure that can be retried.
type RetryableError struct {
	Texts int
	Err   error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable embedding error (%d texts): %v", e.Texts, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// maxBackoff caps the base delay; 2^5s already exceeds it.
const maxBackoff = 30 * time.Second

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := maxBackoff
	if attempt < 5 {
		base = time.Duration(1<<uint(attempt)) * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}
