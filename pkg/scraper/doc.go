// Package scraper defines the contract every site adapter implements and the
// loader that drives it.
//
// An adapter turns one loaded page into a Result: the ordered image list of
// the episode being viewed, lazily evaluated navigation to the adjacent
// episodes, and title information used to name the archive. The download
// side never looks at sites; it only receives the job request built from a
// Result.
//
// Architecture:
//
// The Loader is the main component that:
//   - Resolves the adapter registered for a page URL
//   - Fetches the page with the site's stored session cookie
//   - Parses it into a goquery document
//   - Invokes the adapter and normalises its result
//
// Usage:
//
//	reg := scraper.NewRegistry()
//	sites.Register(reg, sites.Deps{Fetcher: client})
//
//	loader := scraper.NewLoader(reg, client, sessions, log)
//	result, err := loader.Load(ctx, "https://site.example/viewer?productId=1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	req := result.Request(job.ConflictOverwrite)
//
// Navigation:
//
// MoveNext and MovePrev are not evaluated until called. At the first or last
// episode they return a Move with Boundary set instead of an error.
package scraper
