package retry

import "context"

// DoTyped runs fn under the retryer and returns its typed result, avoiding
// the any round-trip of DoWithResult at call sites.
func DoTyped[T any](ctx context.Context, r Retryer, fn func() (T, error)) (T, error) {
	var zero T
	result, err := r.DoWithResult(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	out, ok := result.(T)
	if !ok {
		return zero, nil
	}
	return out, nil
}
