// Package snapshot implements the §4.I snapshot engine: double-buffered
// save/restore of autosave bindings to plain-text files, each terminated
// by a completion marker line, with the file-choice algorithm's
// mtime/completeness tie-breaking and the backup-copy-before-restore
// discipline of SPEC_FULL.md's supplemented features.
package snapshot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nbeaver/mxautosave/internal/autosave"
	"github.com/nbeaver/mxautosave/internal/mxerr"
	"github.com/nbeaver/mxautosave/internal/variable"
	"github.com/nbeaver/mxautosave/internal/wire"
)

// CompletionMarker is the leading character of the final line of a
// complete snapshot file (§4.I step 4, §8 invariant 3).
const CompletionMarker = '*'

// Save implements §4.I's save algorithm: unlink path, recreate it, poll
// every binding to refresh local state, then emit one line per binding
// plus a trailing completion-marker line.
func Save(ctx context.Context, path string, bindings []*autosave.Binding, drivers variable.Drivers, codec *wire.Codec, logger *slog.Logger) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return mxerr.Wrapf("snapshot", mxerr.FileIO, err, "unlinking %q before save", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return mxerr.Wrapf("snapshot", mxerr.FileIO, err, "creating %q", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, b := range bindings {
		if err := drivers.ReceiveVariable(ctx, b.ReadRecord); err != nil {
			logger.Warn("snapshot: refreshing entry before save failed, writing last known value",
				slog.String("field", b.SnapshotKey()), slog.Any("error", err))
		}

		fld, err := variable.GetVariablePointer(b.ReadRecord)
		if err != nil {
			logger.Warn("snapshot: skipping entry with no value field", slog.String("field", b.SnapshotKey()), slog.Any("error", err))
			continue
		}
		tokens, err := codec.EncodeValue(fld.Value)
		if err != nil {
			logger.Warn("snapshot: skipping entry that failed to encode", slog.String("field", b.SnapshotKey()), slog.Any("error", err))
			continue
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", b.SnapshotKey(), tokens); err != nil {
			return mxerr.Wrapf("snapshot", mxerr.FileIO, err, "writing %q", path)
		}
	}

	if _, err := fmt.Fprintf(w, "%c\n", CompletionMarker); err != nil {
		return mxerr.Wrapf("snapshot", mxerr.FileIO, err, "writing completion marker to %q", path)
	}
	if err := w.Flush(); err != nil {
		return mxerr.Wrapf("snapshot", mxerr.FileIO, err, "flushing %q", path)
	}
	return f.Sync()
}

// isComplete scans path for a line beginning with CompletionMarker
// (§4.I step 4). It reports false, nil if the file exists but has no such
// line, and an error if the file cannot be opened (including when it is
// absent) or cannot be read.
func isComplete(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if len(line) > 0 && line[0] == CompletionMarker {
			return true, nil
		}
	}
	return false, sc.Err()
}

// chooseFile implements §4.I's "File choice on restore" algorithm.
func chooseFile(pathA, pathB string, logger *slog.Logger) (chosen string, ok bool) {
	infoA, errA := os.Stat(pathA)
	infoB, errB := os.Stat(pathB)

	switch {
	case errA != nil && errB != nil:
		logger.Warn("snapshot: neither snapshot file could be opened, restoring nothing", slog.String("a", pathA), slog.String("b", pathB))
		return "", false
	case errA != nil:
		return finishChoice(pathB, "", logger)
	case errB != nil:
		return finishChoice(pathA, "", logger)
	}

	candidate, fallback := pathA, pathB
	if infoB.ModTime().After(infoA.ModTime()) {
		candidate, fallback = pathB, pathA
	}
	return finishChoice(candidate, fallback, logger)
}

// finishChoice applies §4.I step 4's completeness check to candidate,
// falling back to fallback (if non-empty) when candidate lacks the
// completion marker.
func finishChoice(candidate, fallback string, logger *slog.Logger) (string, bool) {
	complete, err := isComplete(candidate)
	if err != nil {
		logger.Warn("snapshot: reading candidate snapshot failed", slog.String("file", candidate), slog.Any("error", err))
		complete = false
	}
	if complete {
		return candidate, true
	}
	if fallback == "" {
		logger.Warn("snapshot: the only available snapshot is incomplete, restoring nothing", slog.String("file", candidate))
		return "", false
	}

	logger.Warn("snapshot: newer/only candidate snapshot is incomplete, falling back to the other file",
		slog.String("incomplete", candidate), slog.String("fallback", fallback))

	fbComplete, err := isComplete(fallback)
	if err != nil {
		logger.Warn("snapshot: reading fallback snapshot failed", slog.String("file", fallback), slog.Any("error", err))
		return "", false
	}
	if !fbComplete {
		logger.Warn("snapshot: neither snapshot file is complete, restoring nothing")
		return "", false
	}
	return fallback, true
}

// backup copies src to src+"_bak" before it is parsed (§4.I step 1,
// SPEC_FULL.md supplemented feature #1: copy happens before parsing, so a
// parse failure midway still leaves a pristine backup). Failure is a
// warning, not fatal.
func backup(src string, logger *slog.Logger) {
	dst := src + "_bak"
	in, err := os.Open(src)
	if err != nil {
		logger.Warn("snapshot: could not open snapshot to back it up", slog.String("file", src), slog.Any("error", err))
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		logger.Warn("snapshot: could not create backup file", slog.String("file", dst), slog.Any("error", err))
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("snapshot: could not copy snapshot to backup file", slog.String("file", dst), slog.Any("error", err))
	}
}

// Restore implements §4.I's restore algorithm against the binding whose
// SnapshotKey matches each line in turn, pushing each successfully parsed
// value to its write record via drivers.SendVariable (step 4: "invoke
// send_variable on the write record"). It never returns an error for
// per-entry faults (§7: "the snapshot engine never returns failure to the
// loop"); a nil return covers both "nothing to restore" and "restored with
// some per-entry warnings".
func Restore(ctx context.Context, pathA, pathB string, bindings []*autosave.Binding, drivers variable.Drivers, codec *wire.Codec, logger *slog.Logger) error {
	chosen, ok := chooseFile(pathA, pathB, logger)
	if !ok {
		return nil
	}

	backup(chosen, logger)

	f, err := os.Open(chosen)
	if err != nil {
		return mxerr.Wrapf("snapshot", mxerr.FileIO, err, "opening chosen snapshot %q", chosen)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	restored := 0
	for i, b := range bindings {
		if !sc.Scan() {
			break
		}
		line := sc.Text()
		if len(line) > 0 && line[0] == CompletionMarker {
			break
		}

		if err := restoreLine(ctx, line, b, drivers, codec); err != nil {
			logger.Warn("snapshot: failed to restore entry", slog.Int("line", i+1), slog.String("field", b.SnapshotKey()), slog.Any("error", err))
			continue
		}
		restored++
	}
	if restored < len(bindings) {
		logger.Warn(fmt.Sprintf("snapshot: only %d autosave entries were read from %q; %d entries were expected",
			restored, chosen, len(bindings)))
	}
	if err := sc.Err(); err != nil {
		logger.Warn("snapshot: error reading snapshot file", slog.String("file", chosen), slog.Any("error", err))
	}
	return nil
}

// restoreLine parses one snapshot line against b: the first token must
// equal b's read-side SnapshotKey; the read and write fields must share a
// datatype (TypeMismatch otherwise, with no coercion); the remaining tokens
// are decoded using the write field's datatype/dims and pushed via
// send_variable (§4.I steps 2-4).
func restoreLine(ctx context.Context, line string, b *autosave.Binding, drivers variable.Drivers, codec *wire.Codec) error {
	key, rest, found := strings.Cut(strings.TrimLeft(line, " \t"), " ")
	if !found {
		key, rest = line, ""
	}
	if key != b.SnapshotKey() {
		return mxerr.Newf("snapshot", mxerr.CorruptDataStructure,
			"synchronisation error: line names %q, expected %q", key, b.SnapshotKey())
	}

	fld, err := variable.GetVariablePointer(b.WriteRecord)
	if err != nil {
		return err
	}
	rfld, err := variable.GetVariablePointer(b.ReadRecord)
	if err != nil {
		return err
	}
	if rfld.Defaults.Datatype != fld.Defaults.Datatype {
		return mxerr.Newf("snapshot", mxerr.TypeMismatch,
			"read field of %q has datatype %v but write field has %v", key, rfld.Defaults.Datatype, fld.Defaults.Datatype)
	}

	sc := wire.NewScanner(strings.TrimSpace(rest))
	v, err := codec.DecodeValue(sc, fld.Defaults.Datatype, fld.Dims, fld.Defaults.MaxStringLen)
	if err != nil {
		return mxerr.Wrapf("snapshot", mxerr.UnparseableString, err, "parsing value for %q", key)
	}
	fld.Value = v

	return drivers.SendVariable(ctx, b.WriteRecord)
}
