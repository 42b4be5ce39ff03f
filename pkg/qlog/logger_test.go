package qlog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(slog.LevelInfo, &buf)

	log.Info("dispatching", "snp", "rs12916", "outcome", "formatted_IL6_ahola_olli")

	got := buf.String()
	if !strings.Contains(got, "dispatching snp=rs12916, outcome=formatted_IL6_ahola_olli") {
		t.Errorf("unexpected output %q", got)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Errorf("expected trailing newline")
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(slog.LevelWarn, &buf)

	log.Info("hidden")
	log.Debug("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below WARN, got %q", buf.String())
	}

	log.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn line, got %q", buf.String())
	}
}

func TestLogger_WithKeepsAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(slog.LevelDebug, &buf).With("gene", "HMGCR")

	log.Debug("snp", "id", "rs12916")

	if !strings.Contains(buf.String(), "snp gene=HMGCR, id=rs12916") {
		t.Errorf("expected persistent attrs first, got %q", buf.String())
	}
}

func TestNewForFlags(t *testing.T) {
	ctx := t.Context()
	if NewForFlags(true, true).Enabled(ctx, slog.LevelInfo) {
		t.Errorf("quiet should suppress info even when verbose is set")
	}
	if !NewForFlags(true, false).Enabled(ctx, slog.LevelDebug) {
		t.Errorf("verbose should enable debug")
	}
	if NewForFlags(false, false).Enabled(ctx, slog.LevelDebug) {
		t.Errorf("default should not enable debug")
	}
}
