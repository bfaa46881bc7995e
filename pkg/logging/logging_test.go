package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"warning", LevelWarn},
		{"eRRoR", LevelError},
		{"", LevelInfo},
		{"trace", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"text", FormatText},
		{"", FormatText},
		{"yaml", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.expected {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNew_TeeWritesJSONCopy(t *testing.T) {
	var primary, tee bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatText, Output: &primary, Tee: &tee})

	logger.Info("upstream responded", "status", 200)
	logger.Debug("hidden")

	if !strings.Contains(primary.String(), "upstream responded") {
		t.Errorf("primary output missing record: %q", primary.String())
	}
	if !strings.Contains(tee.String(), `"msg":"upstream responded"`) {
		t.Errorf("tee output missing JSON record: %q", tee.String())
	}
	if strings.Contains(tee.String(), "hidden") {
		t.Errorf("tee output contains record below level: %q", tee.String())
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }

func TestMultiHandler_DeliversPastFailures(t *testing.T) {
	var buf bytes.Buffer
	good := slog.NewJSONHandler(&buf, nil)
	h := NewMultiHandler(failingHandler{good}, good)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "mapping recorded", 0))
	if err == nil || !strings.Contains(err.Error(), "sink down") {
		t.Fatalf("Handle error = %v, want sink down", err)
	}
	if !strings.Contains(buf.String(), "mapping recorded") {
		t.Errorf("healthy handler missed record: %q", buf.String())
	}
}
