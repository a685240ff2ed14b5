package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gtgtree/gtgtree/pkg/config"
	"github.com/gtgtree/gtgtree/pkg/export"
	"github.com/gtgtree/gtgtree/pkg/filter"
	"github.com/gtgtree/gtgtree/pkg/metrics"
	"github.com/gtgtree/gtgtree/pkg/model"
	"github.com/gtgtree/gtgtree/pkg/tasks"
	"github.com/gtgtree/gtgtree/pkg/watcher"
)

func watchCmd(a *app) *cobra.Command {
	var ff filterFlags
	var ro renderOpts
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reprint the filtered tree whenever the task file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("metrics-addr") {
				a.cfg.Metrics.Addr = metricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd, ff.resolve(cmd, a.cfg.Filter), ff.actionable, ro)
		},
	}
	ff.register(cmd)
	ro.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve the tree and Prometheus metrics on this address")
	return cmd
}

// watch runs the file watcher, the reload loop and the optional metrics
// server until ctx ends. The reload loop is the only goroutine that touches
// the store and its views.
func (a *app) watch(ctx context.Context, cmd *cobra.Command, fc config.FilterConfig, actionable bool, ro renderOpts) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	v := filter.New(store, predicate(fc, actionable, store.Now()), fc.Blocking,
		filter.WithLogger(a.logger), filter.WithName("watch"))
	defer v.Close()

	m := metrics.New(prometheus.NewRegistry())
	defer metrics.Observe[uuid.UUID, *model.Task](m, "store", store, store).Unsubscribe()
	defer metrics.Observe[uuid.UUID, *tasks.Node](m, "view", v, v).Unsubscribe()

	opts := []watcher.Option{
		watcher.WithDebounce(a.cfg.Watch.Debounce),
		watcher.WithLogger(a.logger),
	}
	if a.cfg.Watch.Poll {
		opts = append(opts, watcher.WithPolling(0))
	}
	w, err := watcher.New(a.cfg.Tasks.Path, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	published := export.NewServer()
	show := func() error {
		s, err := renderView(out, v, store.Count(false), ro)
		if err != nil {
			return err
		}
		snap := export.Build(v.Roots(), viewTask, store.Count(false), store.Now())
		snap.Text = v.String()
		published.Publish(snap)
		_, err = io.WriteString(out, s)
		return err
	}
	if err := show(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ch := <-w.Changes():
				a.logger.Debug("task file changed", "events", ch.Events, "op", ch.Op.String(), "exists", ch.Exists)
				err := a.reload(store)
				m.Reload(err)
				if err != nil {
					a.logger.Warn("reload failed", "error", err)
					continue
				}
				if err := show(); err != nil {
					return err
				}
			}
		}
	})
	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: serveMux(m, published), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			a.logger.Info("serving tree and metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveMux(m *metrics.Metrics, published *export.Server) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", published)
	return mux
}
