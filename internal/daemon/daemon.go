// Package daemon runs a role together with its optional companions: the
// file watcher of a master and the control plane of either role.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/VersBinarii/thesamo/internal/config"
	"github.com/VersBinarii/thesamo/internal/controlplane"
	"github.com/VersBinarii/thesamo/internal/fswatch"
	"github.com/VersBinarii/thesamo/internal/master"
	"github.com/VersBinarii/thesamo/internal/minion"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// RunMaster builds a master from cfg and runs it until ctx is done. Setup
// failures are returned before anything starts.
func RunMaster(ctx context.Context, cfg *config.Config, opts ...master.Option) error {
	controller, err := master.New(cfg, opts...)
	if err != nil {
		return err
	}

	var watcher *fswatch.Watcher
	if cfg.Watch {
		watcher, err = fswatch.New(controller.Paths())
		if err != nil {
			return fmt.Errorf("file watcher: %w", err)
		}
	}

	cps, err := controlPlane(cfg, &controlplane.MasterBackend{Controller: controller})
	if err != nil {
		if watcher != nil {
			watcher.Stop()
		}
		return err
	}

	slog.Info("master daemon start", "config", cfg.Path)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return controller.Start(egCtx)
	})

	if watcher != nil {
		eg.Go(func() error {
			if err := watcher.Start(egCtx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, fswatch.ErrWatcherClosed) {
				return fmt.Errorf("file watcher: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			forwardChanges(egCtx, watcher, controller)
			return watcher.Stop()
		})
	}

	runControlPlane(egCtx, eg, cps)

	return wait(eg, "master")
}

// RunMinion builds a minion from cfg and serves until ctx is done.
func RunMinion(ctx context.Context, cfg *config.Config) error {
	listener, err := minion.New(cfg)
	if err != nil {
		return err
	}

	cps, err := controlPlane(cfg, &controlplane.MinionBackend{Listener: listener})
	if err != nil {
		listener.Close()
		return err
	}

	slog.Info("minion daemon start", "config", cfg.Path)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return listener.Serve(egCtx)
	})

	runControlPlane(egCtx, eg, cps)

	return wait(eg, "minion")
}

func forwardChanges(ctx context.Context, w *fswatch.Watcher, c *master.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.Changes:
			slog.Debug("file changed", "path", path)
			c.Trigger()
		case err := <-w.Errors:
			slog.Warn("file watcher", "error", err)
		}
	}
}

func controlPlane(cfg *config.Config, backend controlplane.Backend) (*controlplane.Server, error) {
	if cfg.Control.Addr == "" {
		return nil, nil
	}

	cps, err := controlplane.NewServer(&controlplane.Config{
		Addr:  cfg.Control.Addr,
		Token: cfg.Control.Token,
	}, backend)
	if err != nil {
		return nil, err
	}
	if err := cps.Listen(); err != nil {
		return nil, err
	}
	return cps, nil
}

func runControlPlane(ctx context.Context, eg *errgroup.Group, cps *controlplane.Server) {
	if cps == nil {
		return
	}

	eg.Go(func() error {
		return cps.Start(ctx)
	})

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return cps.Stop(shutdownCtx)
	})
}

func wait(eg *errgroup.Group, role string) error {
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("daemon failure", "role", role, "error", err)
		return err
	}
	slog.Info("daemon stopped", "role", role)
	return nil
}
