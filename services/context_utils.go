package services

import "context"

// persistentContext detaches ctx from the caller's cancellation so writes that
// follow a committed mutation are not abandoned when the request ends.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
