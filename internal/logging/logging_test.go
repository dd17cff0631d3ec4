package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formkit/internal/config"
)

func TestNewWriter_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, config.LoggingConfig{Level: "warn", Format: "json"})
	logger.Info().Msg("hidden")
	logger.Warn().Str("form", "tender.edit").Msg("shown")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "shown" || entry["form"] != "tender.edit" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formkit.log")
	logger, closer, err := New(config.LoggingConfig{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info().Msg("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"unknown": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: got %v, want %v", in, got, want)
		}
	}
}
