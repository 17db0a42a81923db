package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_JSONInProd(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "api-server", "prod", "debug")
	logger.Info().Str("slot_id", "abc").Msg("slot created")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "api-server" || entry["slot_id"] != "abc" || entry["message"] != "slot created" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNew_LevelFallback(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "sweeper", "prod", "loud")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level fallback, got %s", logger.GetLevel())
	}
	logger.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Error("debug should be filtered at info level")
	}
}

func TestNew_ConsoleInDev(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "seed", "dev", "info")
	logger.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("dev output should not be JSON: %q", buf.String())
	}
}
