// Package retry provides bounded retries with backoff for page and image
// fetches.
//
// Every operation receives the caller's context; cancellation stops both the
// operation and any pending backoff wait.
//
//	img, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
//		return client.Get(ctx, url, hints)
//	}, retry.ForHTTP(3, log))
//
// Typed errors from pkg/errors decide retryability: network, rate-limit and
// server errors are retried, auth and not-found errors are returned at once.
// ForHTTP also picks a slower backoff for rate-limit responses.
package retry
