// Package config implements the ambient configuration surface of §4.J/§6:
// CLI flags for the supervisor's mode matrix and an optional YAML driver
// manifest loader. It reads no environment variables (MXDIR and
// MX_DEBUGGER are not consulted) and defines no -Y flag. Grounded on
// the teacher's internal/config.Config (defaulting + validation style) and
// cmd/agent/main.go's flag.FlagSet usage.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/nbeaver/mxautosave/internal/applog"
	"github.com/nbeaver/mxautosave/internal/rpc"
)

// Mode is the supervisor's run mode (§4.J "Mode matrix").
type Mode int

const (
	ModeNormal Mode = iota
	ModeRestoreOnly
	ModeSaveOnly
)

// Flags is the parsed and validated command-line configuration of §6.
type Flags struct {
	Mode Mode

	NoRestore bool // -R

	DebugLevel    applog.Level   // -d
	NetworkDebug  rpc.DebugLevel // -a/-A
	Syslog        bool           // -l/-L presence
	Precision     int            // -P
	UpdateSeconds float64        // -u

	ListFile  string
	SnapshotA string
	SnapshotB string // empty in restore-only/save-only mode
}

// SaveInterval is the configured §4.H save-loop period.
func (f *Flags) SaveInterval() time.Duration {
	return time.Duration(f.UpdateSeconds * float64(time.Second))
}

// Parse parses args (typically os.Args[1:]) per §6's CLI grammar and
// §4.J's mode matrix, returning a fully validated Flags.
func Parse(progName string, args []string) (*Flags, error) {
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)

	restoreOnly := fs.Bool("r", false, "restore snapshot then exit")
	saveOnly := fs.Bool("s", false, "poll once, save, then exit")
	noRestore := fs.Bool("R", false, "skip the startup restore")
	debugLevel := fs.Int("d", 0, "debug level (0=quiet,1=info,2=trace)")
	netDebugSummary := fs.Bool("a", false, "summarise network traffic")
	netDebugVerbose := fs.Bool("A", false, "trace network traffic verbosely")
	syslogSummary := fs.Int("l", -1, "mirror logs to syslog (any value >= 0; the value does not change the level)")
	syslogVerbose := fs.Int("L", -1, "mirror logs to syslog at trace verbosity")
	precision := fs.Int("P", 0, "display precision for floating-point tokens")
	updateSecs := fs.Float64("u", 30, "update (save) interval in seconds")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *restoreOnly && *saveOnly {
		return nil, fmt.Errorf("config: -r and -s are mutually exclusive")
	}
	if *restoreOnly && *noRestore {
		return nil, fmt.Errorf("config: -R conflicts with -r")
	}

	f := &Flags{
		NoRestore:     *noRestore,
		Precision:     *precision,
		UpdateSeconds: *updateSecs,
	}

	switch {
	case *restoreOnly:
		f.Mode = ModeRestoreOnly
	case *saveOnly:
		f.Mode = ModeSaveOnly
	default:
		f.Mode = ModeNormal
	}

	switch {
	case *debugLevel >= 2:
		f.DebugLevel = applog.LevelTrace
	case *debugLevel == 1:
		f.DebugLevel = applog.LevelInfo
	default:
		f.DebugLevel = applog.LevelQuiet
	}

	switch {
	case *netDebugVerbose:
		f.NetworkDebug = rpc.DebugVerbose
	case *netDebugSummary:
		f.NetworkDebug = rpc.DebugSummary
	default:
		f.NetworkDebug = rpc.DebugOff
	}

	f.Syslog = *syslogSummary >= 0 || *syslogVerbose >= 0
	if *syslogVerbose >= 0 {
		f.DebugLevel = applog.LevelTrace
	}

	rest := fs.Args()
	wantArgs := 3
	if f.Mode != ModeNormal {
		wantArgs = 2
	}
	if len(rest) != wantArgs {
		return nil, fmt.Errorf("config: expected %d positional argument(s), got %d", wantArgs, len(rest))
	}

	f.ListFile = rest[0]
	f.SnapshotA = rest[1]
	if wantArgs == 3 {
		f.SnapshotB = rest[2]
	}

	return f, nil
}
