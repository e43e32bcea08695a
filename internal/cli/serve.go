package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/relnotes/internal/api"
	"github.com/sprite-ai/relnotes/internal/collect"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing the aggregation engine.

Endpoints:
  GET  /health                  Health check
  POST /api/aggregate           Aggregate facts given in the request body
  POST /api/render              Aggregate and render in one call
  GET  /api/releases/{version}  Fetch from the configured source and aggregate
  GET  /api/ws                  WebSocket for aggregation with live progress`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "127.0.0.1", "address to listen on")
	serveCmd.Flags().IntP("port", "p", 6142, "port to listen on")
	serveCmd.Flags().Bool("offline", false, "serve without a source; only body-driven endpoints work")
	addRepoFlags(serveCmd, false)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	opts, err := serverOptions(cmd, a)
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	port, _ := cmd.Flags().GetInt("port")
	listen := fmt.Sprintf("%s:%d", addr, port)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "relnotes API listening on http://%s\n", listen)
	return api.New(listen, opts).ListenAndServe(ctx)
}

func serverOptions(cmd *cobra.Command, a *app) (api.Options, error) {
	ropts, err := a.cfg.RenderOptions()
	if err != nil {
		return api.Options{}, err
	}
	policy, _ := collect.ParsePolicy(a.cfg.OnFetchError)
	opts := api.Options{
		Render:      ropts,
		Concurrency: a.cfg.Concurrency,
		Policy:      policy,
		Logger:      a.log,
	}

	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		return opts, nil
	}
	if opts.Source, err = a.source(); err != nil {
		return api.Options{}, err
	}
	// an empty default list is fine; clients then name repos per request
	opts.Repos, _ = a.repos(cmd)
	return opts, nil
}
