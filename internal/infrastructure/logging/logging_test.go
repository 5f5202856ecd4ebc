package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupWriter(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	if lvl := SetupWriter(&buf, "WARN", false); lvl != zerolog.WarnLevel {
		t.Fatalf("level = %s", lvl)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("client_id", "c1").Msg("visible")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one json line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "visible" || entry["client_id"] != "c1" || entry["service"] != "ad-autopilot" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestSetupWriterFallsBackToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	if lvl := SetupWriter(&buf, "loud", true); lvl != zerolog.InfoLevel {
		t.Errorf("level = %s", lvl)
	}
}
