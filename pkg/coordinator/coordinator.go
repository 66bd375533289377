// Package coordinator runs download jobs: it fetches every image of a job,
// packs the survivors into an archive, hands the archive to the download
// host and waits for the host to finish with it.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"comicgrabber/internal/downloader"
	"comicgrabber/pkg/archive"
	"comicgrabber/pkg/config"
	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/fetch"
	"comicgrabber/pkg/filename"
	"comicgrabber/pkg/host"
	"comicgrabber/pkg/job"
	"comicgrabber/pkg/lifecycle"
	"comicgrabber/pkg/logger"
	"comicgrabber/pkg/router"

	"github.com/google/uuid"
)

// ActionDownload is the router action that carries job requests
const ActionDownload = "download"

// briefAccessDenied is the warning text for images the server refused
const briefAccessDenied = "Access denied"

// Coordinator owns the fetch, archive and hand-off stages of a job
type Coordinator struct {
	fetcher     downloader.Fetcher
	concurrency int
	builder     *archive.Builder
	tracker     *lifecycle.Tracker
	logger      logger.Logger
}

// New creates a coordinator. tracker must be subscribed to the host that
// should receive the archives.
func New(cfg *config.Config, fetcher downloader.Fetcher, tracker *lifecycle.Tracker, log logger.Logger) *Coordinator {
	return &Coordinator{
		fetcher:     fetcher,
		concurrency: cfg.Fetch.Concurrency,
		builder:     archive.NewBuilder(cfg.Archive),
		tracker:     tracker,
		logger:      logger.OrDefault(log).WithField("component", "coordinator"),
	}
}

// Download runs one job to completion and always returns exactly one result.
// warn is called once for every image that could not be fetched; calls are
// serialized. warn may be nil.
func (c *Coordinator) Download(ctx context.Context, req job.Request, warn func(job.Warning)) job.Result {
	start := time.Now()
	jobID := uuid.NewString()
	log := c.logger.WithFields(map[string]interface{}{
		"job_id":   jobID,
		"filename": req.Filename,
	})
	ctx = logger.NewContext(ctx, log)

	log.InfoWithFields("Job accepted", map[string]interface{}{
		"images": len(req.Images),
		"source": req.SourceURI,
	})

	if err := filename.Validate(req.Filename); err != nil {
		log.WithError(err).Warn("Job rejected: invalid filename")
		return job.Result{
			Status:   job.StatusInvalidFilename,
			Filename: req.Filename,
			Error:    errs.NewInvalidFilename(req.Filename, err.Error()).Error(),
		}
	}

	policy, err := job.ParseConflictPolicy(string(req.ConflictPolicy))
	if err != nil {
		log.WithError(err).Warn("Unknown conflict policy, overwriting")
		policy = job.ConflictOverwrite
	}

	var warnMu sync.Mutex
	agg := downloader.NewAggregator(c.concurrency, c.fetcher, log)
	agg.OnFailure = func(o downloader.Outcome) {
		if warn == nil {
			return
		}
		warnMu.Lock()
		defer warnMu.Unlock()
		warn(warningFor(o))
	}

	outcomes := agg.FetchAll(ctx, req.Images, fetch.Hints{Referer: req.Referer})
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("Job cancelled before archiving")
		return job.Result{Status: job.StatusInterrupted, Filename: req.Filename, Error: errs.NewInterrupted(err.Error()).Error()}
	}

	arc, err := c.builder.Build(outcomes, req.SourceURI)
	if err != nil {
		log.WithError(err).Error("Archive assembly failed")
		return job.Result{Status: job.StatusFailed, Filename: req.Filename, Error: err.Error()}
	}
	log.DebugWithFields("Archive built", map[string]interface{}{
		"entries": len(arc.Entries),
		"size":    len(arc.Data),
	})

	result := c.tracker.Start(ctx, host.Request{
		Source:         arc.Data,
		Filename:       req.Filename,
		ConflictPolicy: policy,
	})

	log.InfoWithFields("Job finished", map[string]interface{}{
		"status":   string(result.Status),
		"entries":  len(arc.Entries),
		"duration": time.Since(start).String(),
	})
	return result
}

// Register binds the download action on r. Fetch failures are sent to the
// requester as warning notifications before the final result.
func (c *Coordinator) Register(r *router.Router) {
	r.Handle(ActionDownload, func(ctx context.Context, data json.RawMessage, reply *router.Replier) (interface{}, error) {
		var req job.Request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("invalid download request: %w", err)
		}
		result := c.Download(ctx, req, func(w job.Warning) {
			_ = reply.Notify(ctx, router.ActionWarning, w)
		})
		return result, nil
	})
}

func warningFor(o downloader.Outcome) job.Warning {
	w := job.Warning{Src: o.SourceURL, Brief: "Fetch failed"}
	var e *errs.Error
	switch {
	case errors.As(o.Err, &e) && e.Code >= 400:
		w.Brief = briefAccessDenied
	case o.Err != nil:
		w.Brief = o.Err.Error()
	}
	return w
}
