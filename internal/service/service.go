package service

import (
	"context"
	"errors"
	"time"

	appErrors "github.com/tracevault/tracevault-api/pkg/errors"
)

// defaultStoreTimeout bounds every store call so a stalled backend cannot
// hang a request indefinitely.
const defaultStoreTimeout = 60 * time.Second

// boundedCtx derives a context with the store call ceiling applied.
func boundedCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// storeErr maps a backend failure onto the error taxonomy. Deadline trips
// surface as timeouts so a write caller never mistakes one for success or
// a definite failure.
func storeErr(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Clone(appErrors.ErrTimeout, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
