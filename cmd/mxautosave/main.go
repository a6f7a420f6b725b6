// Command mxautosave is the autosave supervisor (§4.J): it loads a list
// file describing which remote fields to watch, restores their last saved
// values unless told otherwise, then alternates polling and saving them on
// a fixed interval until the connection is lost or it is asked to stop.
// Grounded on cmd/agent/main.go's load-config -> build-components ->
// start -> block-on-signal -> graceful-shutdown shape.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nbeaver/mxautosave/internal/applog"
	"github.com/nbeaver/mxautosave/internal/autosave"
	"github.com/nbeaver/mxautosave/internal/clock"
	"github.com/nbeaver/mxautosave/internal/config"
	"github.com/nbeaver/mxautosave/internal/health"
	"github.com/nbeaver/mxautosave/internal/mxerr"
	"github.com/nbeaver/mxautosave/internal/poll"
	"github.com/nbeaver/mxautosave/internal/registry"
	"github.com/nbeaver/mxautosave/internal/rpc"
	"github.com/nbeaver/mxautosave/internal/snapshot"
	"github.com/nbeaver/mxautosave/internal/variable"
	"github.com/nbeaver/mxautosave/internal/wire"
)

// healthAddr is the localhost diagnostics listener address (§SPEC_FULL.md
// domain stack: "supervisor diagnostics HTTP mux").
const healthAddr = "127.0.0.1:9191"

func main() {
	os.Exit(run(os.Args[0], os.Args[1:]))
}

func run(progName string, args []string) int {
	flags, err := config.Parse(progName, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mxautosave: %v\n", err)
		return 2
	}

	logger := applog.New(applog.Options{
		Level:     flags.DebugLevel,
		Component: "mxautosave",
		Syslog:    flags.Syslog,
	})
	slog.SetDefault(logger)

	logger.Info("starting up",
		slog.String("list_file", flags.ListFile),
		slog.String("snapshot_a", flags.SnapshotA),
		slog.String("snapshot_b", flags.SnapshotB),
		slog.Int("mode", int(flags.Mode)),
	)

	entries, err := autosave.LoadList(flags.ListFile)
	if err != nil {
		logger.Error("failed to load autosave list", slog.Any("error", err))
		return exitCodeFor(err)
	}

	reg := registry.NewRegistry()
	drivers := registry.NewDriverTable()
	vdrivers := variable.Drivers{}
	pool := autosave.NewClientPool(
		rpc.WithDebugLevel(flags.NetworkDebug),
		rpc.WithLogger(logger),
	)
	defer pool.CloseAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bindings, skipped, err := autosave.NewBindings(ctx, entries, reg, drivers, vdrivers, pool)
	if err != nil {
		logger.Error("failed to build autosave bindings", slog.Any("error", err))
		return exitCodeFor(err)
	}
	for _, e := range skipped {
		logger.Warn("skipping entry with no wire transport", slog.String("protocol", e.Protocol.String()), slog.String("field_id", e.FieldID))
	}

	codec := wire.NewCodec()
	if flags.Precision > 0 {
		codec.Precision = flags.Precision
	}

	rec := health.NewRecorder()
	rec.SetNumEntries(len(bindings))
	healthSrv := startHealthServer(rec, reg, logger)
	defer shutdownHealthServer(healthSrv, logger)

	if shouldRestore(flags) {
		if err := snapshot.Restore(ctx, flags.SnapshotA, flags.SnapshotB, bindings, vdrivers, codec, logger); err != nil {
			logger.Error("restore failed", slog.Any("error", err))
			return exitCodeFor(err)
		}
	}

	if flags.Mode == config.ModeRestoreOnly {
		logger.Info("restore-only mode complete, exiting")
		return 0
	}

	// Saves alternate between the two snapshot files so that an interrupted
	// save always leaves the other, complete file in place.
	active := flags.SnapshotA
	engine := &poll.Engine{
		Bindings:     bindings,
		Drivers:      vdrivers,
		Clock:        clock.Real{},
		Logger:       logger,
		SaveInterval: flags.SaveInterval(),
		PollInterval: flags.SaveInterval(),
		Save: func() error {
			err := snapshot.Save(ctx, active, bindings, vdrivers, codec, logger)
			rec.RecordSave(err)
			if flags.SnapshotB != "" {
				if active == flags.SnapshotA {
					active = flags.SnapshotB
				} else {
					active = flags.SnapshotA
				}
			}
			return err
		},
	}

	if flags.Mode == config.ModeSaveOnly {
		if err := engine.PollOnce(ctx); err != nil {
			logger.Error("save-only poll failed", slog.Any("error", err))
			rec.RecordPoll(err)
			return exitCodeFor(err)
		}
		rec.RecordPoll(nil)
		if err := snapshot.Save(ctx, flags.SnapshotA, bindings, vdrivers, codec, logger); err != nil {
			logger.Error("save-only save failed", slog.Any("error", err))
			rec.RecordSave(err)
			return exitCodeFor(err)
		}
		rec.RecordSave(nil)
		logger.Info("save-only mode complete, exiting")
		return 0
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- engine.Run(ctx) }()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
		<-runErrCh
		return 0
	case err := <-runErrCh:
		if err != nil {
			logger.Error("poll loop terminated", slog.Any("error", err))
			rec.RecordPoll(err)
			return exitCodeFor(err)
		}
		return 0
	}
}

func shouldRestore(flags *config.Flags) bool {
	if flags.Mode == config.ModeSaveOnly {
		return false
	}
	return !flags.NoRestore
}

func startHealthServer(rec *health.Recorder, reg *registry.Registry, logger *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:         healthAddr,
		Handler:      health.NewRouter(rec, reg),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("diagnostics server listening", slog.String("addr", healthAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("diagnostics server error", slog.Any("error", err))
		}
	}()
	return srv
}

func shutdownHealthServer(srv *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("diagnostics server shutdown error", slog.Any("error", err))
	}
}

// exitCodeFor maps an mxerr.Kind to the process exit code §6 documents for
// that failure class.
func exitCodeFor(err error) int {
	switch {
	case mxerr.IsKind(err, mxerr.ConnectionLost):
		return 3
	case mxerr.IsKind(err, mxerr.FileIO):
		return 4
	default:
		return 1
	}
}

