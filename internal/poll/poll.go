// Package poll implements the §4.H poll engine: a single-threaded
// cooperative loop that alternates sleeping, saving, and polling every
// autosave entry. Grounded on the teacher's internal/agent.Agent
// processEvents fan-in and its errors.Is-keyed recovery branching, adapted
// from "one goroutine per watcher" to MX's single cooperative task since
// §5 mandates no concurrency within the loop.
package poll

import (
	"context"
	"log/slog"
	"time"

	"github.com/nbeaver/mxautosave/internal/autosave"
	"github.com/nbeaver/mxautosave/internal/clock"
	"github.com/nbeaver/mxautosave/internal/mxerr"
	"github.com/nbeaver/mxautosave/internal/variable"
)

// TickInterval is the loop's fixed sleep granularity between phase checks
// (§4.H pseudocode: "sleep(10 ms)").
const TickInterval = 10 * time.Millisecond

// SaveFunc is invoked when the save phase fires; normally
// internal/snapshot.Save bound to the active snapshot file.
type SaveFunc func() error

// Engine runs the §4.H loop over a fixed list of bindings.
type Engine struct {
	Bindings []*autosave.Binding
	Drivers  variable.Drivers
	Clock    clock.Clock
	Logger   *slog.Logger

	SaveInterval time.Duration
	PollInterval time.Duration
	Save         SaveFunc
}

// ErrConnectionLost is returned by Run when a poll call reports
// mxerr.ConnectionLost, terminating the loop per §4.H/§7's propagation
// policy ("fatal to the snapshot-file consistency contract").
var ErrConnectionLost = mxerr.New("poll", mxerr.ConnectionLost, "connection lost while polling an autosave entry")

// Run executes the loop until ctx is cancelled or a ConnectionLost error
// terminates it. A nil return means ctx was cancelled cleanly.
func (e *Engine) Run(ctx context.Context) error {
	now := e.Clock.Now()
	nextSave := now
	nextPoll := now

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		t := e.Clock.Now()

		if clock.After(t, nextSave) {
			if e.Save != nil {
				if err := e.Save(); err != nil {
					e.Logger.Warn("autosave: save phase failed", slog.Any("error", err))
				}
			}
			nextSave = clock.Add(nextSave, e.SaveInterval)
		}

		e.Clock.Sleep(TickInterval)

		t = e.Clock.Now()
		if clock.After(t, nextPoll) {
			if err := e.PollOnce(ctx); err != nil {
				return err
			}
			nextPoll = clock.Add(nextPoll, e.PollInterval)
		}
	}
}

// PollOnce polls every binding's read record in list order (§5
// "Ordering"), returning ErrConnectionLost immediately if any entry
// reports it; all other per-entry errors are logged and skipped. Exposed
// directly for the supervisor's -s (save-only) mode, which per §4.J polls
// once before saving without entering the full loop.
func (e *Engine) PollOnce(ctx context.Context) error {
	for _, b := range e.Bindings {
		err := e.Drivers.ReceiveVariable(ctx, b.ReadRecord)
		if err == nil {
			continue
		}
		if mxerr.IsKind(err, mxerr.ConnectionLost) {
			e.Logger.Error("autosave: connection lost while polling", slog.String("field", b.SnapshotKey()), slog.Any("error", err))
			return ErrConnectionLost
		}
		e.Logger.Warn("autosave: poll entry failed", slog.String("field", b.SnapshotKey()), slog.Any("error", err))
	}
	return nil
}
