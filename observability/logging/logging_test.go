package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSetupRenamesKeysAndTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("trustrentd", "test", Options{Output: &buf})
	logger.Info("booked", slog.Uint64("bookingId", 1))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("expected key %q in %v", key, line)
		}
	}
	if line["severity"] != "INFO" || line["message"] != "booked" || line["service"] != "trustrentd" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	var buf bytes.Buffer
	logger := SetupWithOptions("trustrentd", "", Options{Output: &buf, File: &FileOptions{Path: path, MaxSizeMB: 1}})
	logger.Warn("paused")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte(`"message":"paused"`)) {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("svc", "", Options{Output: &buf, Level: ParseLevel("warn")})
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %s", buf.String())
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("jwtSecret", "s3cret").Value.String(); got != RedactedValue {
		t.Fatalf("expected redaction, got %q", got)
	}
	if got := MaskField("service", "trustrentd").Value.String(); got != "trustrentd" {
		t.Fatalf("allowlisted key should pass through, got %q", got)
	}
	if got := MaskValue(""); got != "" {
		t.Fatalf("empty values stay empty, got %q", got)
	}
}

func TestHandlerMasksSecretKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("rentalindexd", "", Options{Output: &buf})
	logger.Info("connected", slog.String("dsn", "postgres://u:p@db/rent"), slog.String("Authorization", ""), slog.Uint64("bookingId", 3))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["dsn"] != RedactedValue {
		t.Fatalf("dsn leaked: %v", line["dsn"])
	}
	if line["Authorization"] != "" {
		t.Fatalf("empty secret should stay empty: %v", line["Authorization"])
	}
	if line["bookingId"] != float64(3) {
		t.Fatalf("unexpected bookingId: %v", line["bookingId"])
	}
}
