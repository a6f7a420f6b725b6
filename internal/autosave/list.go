// Package autosave implements the autosave-list entry model of §3/§6: the
// human-authored list file naming which remote fields to track, and the
// bindings (local proxy records backed by a remote RPC connection) that
// realize each entry for the poll and snapshot engines.
package autosave

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// Protocol is one of the list file's `<protocol>` tags (§6).
type Protocol int

const (
	ProtocolMX Protocol = iota
	ProtocolEPICS
	ProtocolEPICSMotorPosition
)

func (p Protocol) String() string {
	switch p {
	case ProtocolMX:
		return "mx"
	case ProtocolEPICS:
		return "epics"
	case ProtocolEPICSMotorPosition:
		return "epics_motor_position"
	default:
		return "unknown"
	}
}

// ParseProtocol parses one of the three accepted protocol tags.
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "mx":
		return ProtocolMX, nil
	case "epics":
		return ProtocolEPICS, nil
	case "epics_motor_position":
		return ProtocolEPICSMotorPosition, nil
	default:
		return 0, mxerr.Newf("autosave", mxerr.UnparseableString, "unknown protocol tag %q", s)
	}
}

// FlagWriteToDifferentField is bit 0 of an entry's flags: "restore to a
// different field, named in extra_id" (§6).
const FlagWriteToDifferentField = 0x1

// Entry is one parsed line of the list file (§6 "List file format").
type Entry struct {
	Protocol Protocol
	FieldID  string
	Flags    uint32
	ExtraID  string
}

// WritesToDifferentField reports whether the entry's restore target is a
// field other than the one it polls.
func (e Entry) WritesToDifferentField() bool {
	return e.Flags&FlagWriteToDifferentField != 0
}

// LoadList parses the autosave list file at path: one entry per line,
// blank lines and lines beginning with "#" ignored.
func LoadList(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mxerr.Wrapf("autosave", mxerr.FileIO, err, "opening list file %q", path)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseListLine(line)
		if err != nil {
			return nil, mxerr.Wrapf("autosave", mxerr.UnparseableString, err, "list file %q line %d", path, lineNo)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, mxerr.Wrapf("autosave", mxerr.FileIO, err, "reading list file %q", path)
	}
	return entries, nil
}

func parseListLine(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("expected at least 3 fields, got %d", len(fields))
	}

	proto, err := ParseProtocol(fields[0])
	if err != nil {
		return Entry{}, err
	}

	flags, err := strconv.ParseUint(fields[2], 0, 32)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing flags %q: %w", fields[2], err)
	}

	e := Entry{Protocol: proto, FieldID: fields[1], Flags: uint32(flags)}
	if e.WritesToDifferentField() {
		if len(fields) < 4 {
			return Entry{}, fmt.Errorf("flags 0x%x set bit 0 but no extra_id field is present", flags)
		}
		e.ExtraID = fields[3]
	}
	return e, nil
}
