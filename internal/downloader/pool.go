package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/fetch"
	"comicgrabber/pkg/logger"
)

// Fetcher retrieves one resource
type Fetcher interface {
	Get(ctx context.Context, rawURL string, hints fetch.Hints) (*fetch.Response, error)
}

// Outcome is the settled result of fetching one image. Outcomes are returned
// in input order; Index is the position in the original URL list.
type Outcome struct {
	Index        int
	SourceURL    string
	Data         []byte
	DeclaredType string
	Err          error
	Duration     time.Duration
}

// Success reports whether the image was retrieved
func (o Outcome) Success() bool {
	return o.Err == nil
}

type fetchJob struct {
	index int
	url   string
}

// Aggregator fetches a batch of images on a bounded worker pool. A failed
// item never cancels its siblings and FetchAll returns only after every item
// has settled.
type Aggregator struct {
	numWorkers int
	client     Fetcher
	logger     logger.Logger

	// OnFailure is called from a worker goroutine as soon as an item fails.
	// It must be safe for concurrent use.
	OnFailure func(Outcome)
}

// NewAggregator creates an aggregator with numWorkers concurrent fetches
func NewAggregator(numWorkers int, client Fetcher, log logger.Logger) *Aggregator {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Aggregator{
		numWorkers: numWorkers,
		client:     client,
		logger:     logger.OrDefault(log),
	}
}

// FetchAll retrieves every URL and returns one Outcome per URL, aligned with
// the input order regardless of completion order
func (a *Aggregator) FetchAll(ctx context.Context, urls []string, hints fetch.Hints) []Outcome {
	outcomes := make([]Outcome, len(urls))
	if len(urls) == 0 {
		return outcomes
	}

	workers := a.numWorkers
	if workers > len(urls) {
		workers = len(urls)
	}

	jobQueue := make(chan fetchJob, len(urls))
	resultQueue := make(chan Outcome, workers)

	log := logger.FromContext(ctx, a.logger)
	log.DebugWithFields("Starting fetch workers", map[string]interface{}{
		"num_workers": workers,
		"images":      len(urls),
	})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go a.worker(ctx, i, jobQueue, resultQueue, hints, &wg)
	}

	for i, u := range urls {
		jobQueue <- fetchJob{index: i, url: u}
	}
	close(jobQueue)

	go func() {
		wg.Wait()
		close(resultQueue)
	}()

	failed := 0
	for outcome := range resultQueue {
		outcomes[outcome.Index] = outcome
		if !outcome.Success() {
			failed++
		}
	}

	log.InfoWithFields("Fetch batch settled", map[string]interface{}{
		"images":    len(urls),
		"succeeded": len(urls) - failed,
		"failed":    failed,
	})
	return outcomes
}

func (a *Aggregator) worker(ctx context.Context, id int, jobs <-chan fetchJob, results chan<- Outcome, hints fetch.Hints, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		outcome := a.processJob(ctx, job, hints, id)
		if !outcome.Success() && a.OnFailure != nil {
			a.OnFailure(outcome)
		}
		results <- outcome
	}
}

func (a *Aggregator) processJob(ctx context.Context, job fetchJob, hints fetch.Hints, workerID int) (outcome Outcome) {
	start := time.Now()
	log := logger.FromContext(ctx, a.logger)
	outcome = Outcome{Index: job.index, SourceURL: job.url}

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = errs.NewFetchFailure(job.url, fmt.Errorf("panic: %v", r))
		}
		outcome.Duration = time.Since(start)
	}()

	resp, err := a.client.Get(ctx, job.url, hints)
	switch {
	case err != nil:
		outcome.Err = errs.NewFetchFailure(job.url, err)
	case len(resp.Body) == 0:
		outcome.Err = errs.NewFetchFailure(job.url, fmt.Errorf("empty response body"))
	default:
		outcome.Data = resp.Body
		outcome.DeclaredType = resp.ContentType
	}

	if outcome.Err != nil {
		log.WarnWithFields("Image fetch failed", map[string]interface{}{
			"worker_id": workerID,
			"index":     job.index,
			"url":       job.url,
			"error":     outcome.Err.Error(),
		})
		return outcome
	}

	log.DebugWithFields("Image fetched", map[string]interface{}{
		"worker_id": workerID,
		"index":     job.index,
		"size":      len(outcome.Data),
		"duration":  time.Since(start),
	})
	return outcome
}
