package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	rtsegprom "github.com/hupe1980/rtseg/metrics/prometheus"
)

type serveArgs struct {
	addr      string
	namespace string
}

func newServeCommand(root *rootFlags) *cobra.Command {
	var args serveArgs
	cmd := &cobra.Command{
		Use:   "serve [file...]",
		Short: "Ingest JSON lines while serving queries over HTTP",
		Long: `Serve ingests the files, or stdin, in the background and answers queries
against the consuming segment while it grows. Documents are visible to
queries as soon as they are indexed.

Endpoints:
  GET  /query?select=a,b&where=a=x&limit=10&trace=true
  GET  /stats
  POST /exports/{name}
  GET  /metrics
  GET  /healthz`,
		RunE: func(cmd *cobra.Command, files []string) error {
			return runServe(cmd, root, args, files)
		},
	}
	cmd.Flags().StringVar(&args.addr, "addr", ":8080", "HTTP listen address.")
	cmd.Flags().StringVar(&args.namespace, "metrics-namespace", "rtseg", "Prometheus metric namespace.")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootFlags, args serveArgs, files []string) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := rtsegprom.New(reg, args.namespace)

	b, err := cfg.TableBuilder()
	if err != nil {
		return err
	}
	in, err := b.Metrics(metrics).Build()
	if err != nil {
		return err
	}
	defer in.Close()

	store, err := cfg.OpenStore(cmd.Context())
	if err != nil {
		return err
	}
	exportOpt, err := cfg.ExportOptions()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", args.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           newServer(in, store, exportOpt, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("serving", "addr", ln.Addr().String(), "segment", in.Segment().Name())

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		st, err := ingestFiles(ctx, cmd, in, files)
		if err != nil && !errors.Is(err, context.Canceled) {
			// The segment stays queryable after ingestion stops.
			logger.Error("ingestion stopped", "error", err, "indexed", st.Indexed)
			return nil
		}
		logger.Info("ingestion finished", "indexed", st.Indexed, "num_docs", in.NumDocs())
		return nil
	})
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
