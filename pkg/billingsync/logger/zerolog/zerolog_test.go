package zerolog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/psicoplan/billingsync/pkg/billingsync"
)

func TestZerologLogger_NewLogger(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output))

	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}
}

func TestZerologLogger_Levels(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output))

	logger.Debug("debug message", billingsync.Field{Key: "key", Value: "value"})
	logger.Info("info message", billingsync.Field{Key: "key", Value: "value"})
	logger.Warn("warn message", billingsync.Field{Key: "key", Value: "value"})
	logger.Error("error message", billingsync.Field{Key: "key", Value: "value"})

	if output.Len() == 0 {
		t.Fatal("Expected logs to be written")
	}
}

func TestZerologLogger_LogLevelFiltering(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output).Level(zerolog.WarnLevel))

	// Debug and Info should be filtered out
	logger.Debug("debug message")
	logger.Info("info message")

	if output.Len() != 0 {
		t.Error("Expected debug and info to be filtered out")
	}

	// Warn and Error should be logged
	logger.Warn("warn message")
	logger.Error("error message")

	if output.Len() == 0 {
		t.Error("Expected warn and error to be logged")
	}
}

func TestZerologLogger_FieldsAppearInOutput(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output))

	logger.Info("projection updated",
		billingsync.Field{Key: "email", Value: "ana@example.com"},
		billingsync.Field{Key: "tier", Value: "plus"},
		billingsync.Field{Key: "amount", Value: 2900},
	)

	var entry map[string]any
	if err := json.Unmarshal(output.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}

	if entry["message"] != "projection updated" {
		t.Errorf("Expected message %q, got %v", "projection updated", entry["message"])
	}
	if entry["email"] != "ana@example.com" {
		t.Errorf("Expected email field, got %v", entry["email"])
	}
	if entry["tier"] != "plus" {
		t.Errorf("Expected tier field, got %v", entry["tier"])
	}
	if entry["amount"] != float64(2900) {
		t.Errorf("Expected amount field, got %v", entry["amount"])
	}
}
