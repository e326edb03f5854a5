package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"ionic/internal/config"
)

// TestJSONOutput verifies the app field and level filtering
func TestJSONOutput(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	log, err := NewWithWriter("ionic", config.LogConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("output %q: %v", buf.String(), err)
	}
	if rec["app"] != "ionic" || rec["message"] != "shown" || rec["k"] != "v" {
		t.Errorf("record = %v", rec)
	}
}

// TestRejectsBadConfig verifies unknown levels and formats fail
func TestRejectsBadConfig(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	if _, err := NewWithWriter("ionic", config.LogConfig{Level: "loud"}, &buf); err == nil {
		t.Error("bad level accepted")
	}
	if _, err := NewWithWriter("ionic", config.LogConfig{Format: "xml"}, &buf); err == nil {
		t.Error("bad format accepted")
	}
}
