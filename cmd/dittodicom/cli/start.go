package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/marmos91/dittodicom/internal/logger"
	httpadapter "github.com/marmos91/dittodicom/pkg/adapter/http"
	"github.com/marmos91/dittodicom/pkg/admission"
	"github.com/marmos91/dittodicom/pkg/config"
	"github.com/marmos91/dittodicom/pkg/listener"
	"github.com/marmos91/dittodicom/pkg/server"
	"github.com/marmos91/dittodicom/pkg/store/index"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start all configured listeners",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Error("Shutdown: %v", err)
			}
		}()

		logger.Info("DittoDICOM %s started with %d listener(s). Press Ctrl+C to stop.", Version, len(a.listeners))
		if err := a.server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// app is the running process: one listener per configured endpoint sharing
// the instance index, the admission gate and the metrics.
type app struct {
	server    *server.Server
	listeners []*listener.Listener
	index     index.Index
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	built, err := config.Build(cfg)
	if err != nil {
		return nil, err
	}

	mr := config.InitializeMetrics(cfg)

	idx, err := config.CreateIndex(ctx, &cfg.Index)
	if err != nil {
		return nil, err
	}

	a := &app{
		server: server.New(
			server.WithMetricsServer(mr.Server),
			server.WithStopTimeout(cfg.Server.ShutdownTimeout),
		),
		index: idx,
	}

	gate := &admission.Gate{}
	for i, lc := range built {
		m, err := config.CreateMirror(ctx, &cfg.Listeners[i].Mirror)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("listener %s: %w", lc.AETitle, err)
		}

		l, err := listener.New(lc, listener.Deps{
			Gate:    gate,
			Index:   idx,
			Mirror:  m,
			Metrics: mr.Storage,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}

		if err := a.server.AddAdapter(httpadapter.New(l, httpadapter.Config{})); err != nil {
			_ = a.Close()
			return nil, err
		}
		a.listeners = append(a.listeners, l)
	}

	return a, nil
}

// Close releases the resources shared by the listeners.
func (a *app) Close() error {
	var result *multierror.Error
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing index: %w", err))
		}
	}
	return result.ErrorOrNil()
}
