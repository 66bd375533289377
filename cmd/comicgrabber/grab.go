package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"comicgrabber/pkg/checkpoint"
	"comicgrabber/pkg/coordinator"
	errs "comicgrabber/pkg/errors"
	"comicgrabber/pkg/job"
	"comicgrabber/pkg/router"
	"comicgrabber/pkg/scraper"
	"comicgrabber/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Grab command flags
	grabFilename   string
	grabOutput     string
	grabConflict   string
	grabConcurrent int
	grabSite       string
	grabFollow     int
	grabList       bool
	grabResume     bool
)

// grabCmd represents the grab command
var grabCmd = &cobra.Command{
	Use:   "grab <page-url>",
	Short: "Download the episode shown on a page as a zip archive",
	Long: `Scrape an episode page, fetch every image of the episode and save them
as one zip archive.

The archive is named "<series>/<episode>.zip" from the page title. Images that
cannot be fetched are reported as warnings and leave a gap in the numbering;
the archive is still written. A "Downloaded from.txt" entry records the page.`,
	Example: `  # Download one episode into ./downloads
  comicgrabber grab "https://www.11toon5.com/content/123/456?page=toon"

  # Download it and the next four episodes
  comicgrabber grab --follow 4 "https://page.kakao.com/viewer?productId=1234"

  # Continue a series where the last --follow run stopped
  comicgrabber grab --follow 10 --resume "<first episode url>"

  # Keep both files when the archive already exists
  comicgrabber grab --conflict uniquify --output ~/comics "<url>"

  # Show what would be downloaded
  comicgrabber grab --list "<url>"`,
	Args: cobra.ExactArgs(1),
	RunE: runGrab,
}

func init() {
	rootCmd.AddCommand(grabCmd)

	grabCmd.Flags().StringVarP(&grabFilename, "filename", "f", "", "archive path relative to the output directory (default from page title)")
	grabCmd.Flags().StringVarP(&grabOutput, "output", "o", "", "output directory")
	grabCmd.Flags().StringVar(&grabConflict, "conflict", "", "what to do when the archive exists (overwrite, uniquify, fail)")
	grabCmd.Flags().IntVar(&grabConcurrent, "concurrent", 0, "number of concurrent image fetches")
	grabCmd.Flags().StringVar(&grabSite, "site", "", "force a site adapter instead of matching the URL")
	grabCmd.Flags().IntVar(&grabFollow, "follow", 0, "also download this many following episodes")
	grabCmd.Flags().BoolVar(&grabList, "list", false, "print the scraped images without downloading")
	grabCmd.Flags().BoolVar(&grabResume, "resume", false, "with --follow, continue after the last episode downloaded for this series")
}

func runGrab(cmd *cobra.Command, args []string) error {
	if grabFilename != "" && grabFollow > 0 {
		return errors.New("--filename cannot be combined with --follow")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(appConfig, appLogger)
	if err != nil {
		return err
	}
	defer a.Close()

	policy, err := job.ParseConflictPolicy(appConfig.Download.ConflictPolicy)
	if err != nil {
		return err
	}

	client := a.localClient(ctx)
	notifier := ui.NewNotifier(appConfig.Notifications.Enabled)

	pageURL := args[0]
	var series *seriesProgress
	failed := 0
	for i := 0; i <= grabFollow; i++ {
		summary, err := scrapePage(ctx, client, pageURL)
		if err != nil {
			return err
		}

		if i == 0 && grabFollow > 0 && !grabList {
			series = openSeries(summary.Title)
			if next := series.resumeURL(); grabResume && next != "" && next != pageURL {
				ui.PrintInfo("Resuming at", next)
				pageURL = next
				if summary, err = scrapePage(ctx, client, pageURL); err != nil {
					return err
				}
			}
		}

		ui.PrintInfo("Episode", summary.Filename)
		ui.PrintInfo("Images", fmt.Sprintf("%d", len(summary.Images)))

		switch {
		case grabList:
			for n, img := range summary.Images {
				fmt.Printf("%3d %s\n", n, img)
			}
		case series.done(summary.SourceURI):
			ui.PrintHighlight("Already downloaded, skipping")
		default:
			req := summary.Request(policy)
			if grabFilename != "" {
				req.Filename = grabFilename
			}
			report := client.begin(req.Filename, len(req.Images), notifier)

			var result job.Result
			if err := client.Call(ctx, coordinator.ActionDownload, req, &result); err != nil {
				if ctx.Err() == nil {
					return fmt.Errorf("download failed: %w", err)
				}
				result = job.Result{Status: job.StatusInterrupted, Filename: req.Filename, Error: errs.NewInterrupted("interrupted by signal").Error()}
			}
			report.Finish(result)
			if result.Status == job.StatusInterrupted && ctx.Err() != nil {
				return errors.New("interrupted")
			}
			if !result.OK() {
				failed++
				break
			}
			series.record(summary, result.Filename)
		}

		if i == grabFollow {
			break
		}
		if summary.Next == nil || summary.Next.Boundary {
			ui.PrintHighlight("Reached the latest episode")
			break
		}
		pageURL = summary.Next.URL
	}

	if failed > 0 {
		return fmt.Errorf("%d download(s) did not complete", failed)
	}
	return nil
}

// seriesProgress is the checkpoint of a --follow run. A nil value records
// nothing.
type seriesProgress struct {
	mgr *checkpoint.Manager
	cp  *checkpoint.Checkpoint
}

func openSeries(title string) *seriesProgress {
	if title == "" {
		return nil
	}
	mgr, err := checkpoint.NewManager(title, appLogger)
	if err != nil {
		appLogger.WithError(err).Warn("Checkpoints disabled")
		return nil
	}
	cp, err := mgr.LoadOrCreate(title)
	if err != nil {
		appLogger.WithError(err).Warn("Checkpoints disabled")
		return nil
	}
	return &seriesProgress{mgr: mgr, cp: cp}
}

func (s *seriesProgress) resumeURL() string {
	if s == nil {
		return ""
	}
	return s.cp.NextURL
}

func (s *seriesProgress) done(pageURL string) bool {
	return s != nil && grabResume && s.cp.IsEpisodeDownloaded(pageURL)
}

func (s *seriesProgress) record(summary *scraper.PageSummary, archive string) {
	if s == nil {
		return
	}
	next := ""
	if summary.Next != nil && !summary.Next.Boundary {
		next = summary.Next.URL
	}
	if err := s.mgr.RecordEpisode(s.cp, summary.SourceURI, archive, next); err != nil {
		appLogger.WithError(err).Warn("Failed to save checkpoint")
	}
}

func scrapePage(ctx context.Context, client *localClient, pageURL string) (*scraper.PageSummary, error) {
	var summary scraper.PageSummary
	req := scraper.ScrapeRequest{URL: pageURL, Site: grabSite, Navigate: grabFollow > 0}
	if err := client.Call(ctx, scraper.ActionScrape, req, &summary); err != nil {
		return nil, fmt.Errorf("scrape %s: %w", pageURL, err)
	}
	return &summary, nil
}

// localClient talks to the app's router over an in-process pipe and routes
// warning notifications to the report of the running job
type localClient struct {
	*router.Client

	mu     sync.Mutex
	report *ui.JobReport
}

func (a *app) localClient(ctx context.Context) *localClient {
	serverEnd, clientEnd := router.Pipe()
	go func() {
		if err := a.router.Serve(ctx, serverEnd); err != nil {
			a.log.WithError(err).Error("Router stopped")
		}
	}()

	lc := &localClient{Client: router.NewClient(clientEnd, a.log)}
	lc.OnNotify = lc.notify
	go func() { _ = lc.Run(ctx) }()
	return lc
}

func (c *localClient) begin(filename string, total int, notifier *ui.Notifier) *ui.JobReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = ui.NewJobReport(filename, total, notifier)
	return c.report
}

func (c *localClient) notify(msg router.Message) {
	if msg.Action != router.ActionWarning {
		return
	}
	var w job.Warning
	if err := json.Unmarshal(msg.Data, &w); err != nil {
		return
	}

	c.mu.Lock()
	report := c.report
	c.mu.Unlock()
	if report != nil {
		report.Warn(w)
	}
}
