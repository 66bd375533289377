// Package ratelimit keeps image and page fetches under a per-client request
// budget so a long episode does not trip CDN throttling.
//
// New turns the fetch.requests_per_minute setting into a token bucket that
// refills one token every minute/n and holds at most n tokens. Wait takes a
// context so a cancelled job never sits in the limiter:
//
//	limiter := ratelimit.New(cfg.Fetch.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
