package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// TestLogger_IncludesCallFields verifies call fields are present in log output.
func TestLogger_IncludesCallFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{
		Key:       "acme:gpt-large",
		Operation: "chat_completion",
		Provider:  "acme",
	}

	callLogger := logger.WithCall(meta)
	callLogger.Info(context.Background(), "test message")

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, output)
	}

	if v, ok := logEntry["target.key"].(string); !ok || v != "acme:gpt-large" {
		t.Errorf("expected target.key='acme:gpt-large', got %v", logEntry["target.key"])
	}
	if v, ok := logEntry["call.operation"].(string); !ok || v != "chat_completion" {
		t.Errorf("expected call.operation='chat_completion', got %v", logEntry["call.operation"])
	}
	if v, ok := logEntry["call.provider"].(string); !ok || v != "acme" {
		t.Errorf("expected call.provider='acme', got %v", logEntry["call.provider"])
	}
}

// TestLogger_IncludesDuration verifies duration_ms field is present.
func TestLogger_IncludesDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{Key: "serverless:gpt-large", Operation: "chat_completion"}
	callLogger := logger.WithCall(meta)

	callLogger.Info(context.Background(), "test message",
		Field{Key: "duration_ms", Value: 50.5},
	)

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["duration_ms"].(float64); !ok || v != 50.5 {
		t.Errorf("expected duration_ms=50.5, got %v", logEntry["duration_ms"])
	}
}

// TestLogger_ErrorLevel verifies error log level and error field.
func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{Key: "serverless:gpt-large", Operation: "chat_completion"}
	callLogger := logger.WithCall(meta)

	callLogger.Error(context.Background(), "call failed",
		Field{Key: "error", Value: "connection timeout"},
	)

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "error" {
		t.Errorf("expected level='error', got %v", logEntry["level"])
	}

	if v, ok := logEntry["error"].(string); !ok || v != "connection timeout" {
		t.Errorf("expected error='connection timeout', got %v", logEntry["error"])
	}
}

// TestLogger_InfoLevel verifies info log level.
func TestLogger_InfoLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{Key: "serverless:gpt-large", Operation: "chat_completion"}
	callLogger := logger.WithCall(meta)

	callLogger.Info(context.Background(), "operation complete")

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "info" {
		t.Errorf("expected level='info', got %v", logEntry["level"])
	}
}

// TestLogger_BodyRedactedByDefault verifies request payloads are not logged.
func TestLogger_BodyRedactedByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{Key: "serverless:gpt-large", Operation: "chat_completion"}
	callLogger := logger.WithCall(meta)

	callLogger.Info(context.Background(), "call executed",
		Field{Key: "body", Value: "secret_prompt_123"},
	)

	output := buf.String()

	// The raw body value should NOT appear
	if strings.Contains(output, "secret_prompt_123") {
		t.Error("raw body should be redacted, but found in output")
	}

	if !strings.Contains(output, "[REDACTED]") {
		t.Error("expected redacted marker in output")
	}
}

// TestLogger_AuthorizationRedacted verifies credentials are not logged.
func TestLogger_AuthorizationRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "request prepared",
		Field{Key: "authorization", Value: "Bearer sk-live-12345"},
	)

	output := buf.String()
	if strings.Contains(output, "sk-live-12345") {
		t.Error("credential should be redacted, but found in output")
	}
}

// TestLogger_LevelFiltering verifies log level filtering.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	meta := CallMeta{Key: "serverless:gpt-large", Operation: "chat_completion"}
	callLogger := logger.WithCall(meta)

	// Info should be filtered out
	callLogger.Info(context.Background(), "info message")

	output := buf.String()
	if strings.Contains(output, "info message") {
		t.Error("info message should be filtered when level is warn")
	}

	// Warn should pass through
	callLogger.Warn(context.Background(), "warn message")

	output = buf.String()
	if !strings.Contains(output, "warn message") {
		t.Error("warn message should pass through when level is warn")
	}
}

// TestLogger_DebugLevel verifies debug level filtering.
func TestLogger_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	meta := CallMeta{Key: "serverless:gpt-large", Operation: "chat_completion"}
	callLogger := logger.WithCall(meta)

	callLogger.Debug(context.Background(), "debug message")

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "debug" {
		t.Errorf("expected level='debug', got %v", logEntry["level"])
	}
}

// TestLogger_WarnLevel verifies warn level.
func TestLogger_WarnLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{Key: "serverless:gpt-large", Operation: "chat_completion"}
	callLogger := logger.WithCall(meta)

	callLogger.Warn(context.Background(), "warning message")

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "warn" {
		t.Errorf("expected level='warn', got %v", logEntry["level"])
	}
}

// TestLogger_StreamingIncluded verifies the streaming flag is included when set.
func TestLogger_StreamingIncluded(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{
		Key:       "serverless:gpt-large",
		Operation: "chat_completion",
		Streaming: true,
	}
	callLogger := logger.WithCall(meta)

	callLogger.Info(context.Background(), "test")

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["call.streaming"].(bool); !ok || !v {
		t.Errorf("expected call.streaming=true, got %v", logEntry["call.streaming"])
	}
}
