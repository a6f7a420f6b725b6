package applog

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewQuietLevelSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: LevelQuiet, Writer: &buf})
	logger.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output at quiet level, got %q", buf.String())
	}
}

func TestNewInfoLevelEmitsInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: LevelInfo, Component: "mxautosave", Writer: &buf})
	logger.Info("starting up")
	out := buf.String()
	if !strings.Contains(out, "starting up") {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "component=mxautosave") {
		t.Fatalf("expected component attr in output, got %q", out)
	}
}

func TestNewTraceLevelEmitsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: LevelTrace, Writer: &buf})
	logger.Debug("wire trace detail")
	if !strings.Contains(buf.String(), "wire trace detail") {
		t.Fatalf("expected debug output at trace level, got %q", buf.String())
	}
}
