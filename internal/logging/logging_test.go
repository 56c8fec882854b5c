package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_Level(t *testing.T) {
	logger := New("test", "debug", "json")
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", logger.GetLevel())
	}

	logger = New("test", "not-a-level", "json")
	if logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want info fallback", logger.GetLevel())
	}
}

func TestWithContext_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("catalog", "info", "json", &buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUserID(ctx, "7")
	ctx = WithTenant(ctx, "tenantA")
	logger.WithContext(ctx).Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	for key, want := range map[string]string{
		"service":  "catalog",
		"trace_id": "trace-1",
		"user_id":  "7",
		"tenant":   "tenantA",
		"msg":      "hello",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %s", key, entry[key], want)
		}
	}
}

func TestTraceID_RoundTrip(t *testing.T) {
	id := NewTraceID()
	if id == "" {
		t.Fatal("NewTraceID() returned empty id")
	}
	ctx := WithTraceID(context.Background(), id)
	if got := GetTraceID(ctx); got != id {
		t.Errorf("GetTraceID() = %s, want %s", got, id)
	}
	if got := GetTraceID(context.Background()); got != "" {
		t.Errorf("GetTraceID(empty) = %s, want empty", got)
	}
}

func TestLogSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("auth", "info", "json", &buf)

	logger.LogSecurityEvent(context.Background(), "token_refresh_failed", map[string]interface{}{"backend": "catalog"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["security_event"] != "token_refresh_failed" {
		t.Errorf("security_event = %v", entry["security_event"])
	}
	if entry["level"] != "warning" {
		t.Errorf("level = %v, want warning", entry["level"])
	}
}
