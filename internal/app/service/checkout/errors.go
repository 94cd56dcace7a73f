package checkout

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation marks user-correctable request errors; handlers map it to a
// 422 with the wrapped message and no side effects have happened.
var ErrValidation = errors.New("validation failed")

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// RateLimitedError carries the retry hint for a 429 response.
type RateLimitedError struct {
	RetryIn time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryIn)
}
