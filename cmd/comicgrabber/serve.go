package main

import (
	"os"
	"os/signal"
	"syscall"

	"comicgrabber/pkg/router"

	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve download requests as newline-delimited JSON on stdin/stdout",
	Long: `Run the download pipeline behind a message port on stdin and stdout.

Every line is one JSON message {"action", "clientUid", "data"}. Supported
actions:
  scrape    {"url", "site", "navigate"}           -> page summary
  download  {"filename", "conflictAction", "images", "uri", "referer"}
                                                  -> {"status", "filename"}

While a download runs, each image that could not be fetched is reported with
a {"action": "warning", "data": {"brief", "src"}} message carrying the
request's clientUid. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(appConfig, appLogger)
	if err != nil {
		return err
	}
	defer a.Close()

	port := router.NewStreamPort(os.Stdin, os.Stdout)
	defer port.Close()

	a.log.WithField("actions", a.router.Actions()).Info("Serving on stdio")
	return a.router.Serve(ctx, port)
}
