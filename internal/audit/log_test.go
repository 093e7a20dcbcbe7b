package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"tavolo.org/internal/auth"
	"tavolo.org/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithAuth(ctx, auth.AuthContext{
		PrincipalID: "p-42",
		LoginID:     "owner@example.com",
		Kind:        auth.KindTenantUser,
		Class:       auth.ClassAccess,
	})

	if err := LogEvent(ctx, "auth.login.success", map[string]any{"tenant": "t-1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "auth.login.success" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["actor"] != "owner@example.com" {
		t.Fatalf("unexpected actor: %v", entry["actor"])
	}
	if entry["actor_kind"] != "tenant-user" {
		t.Fatalf("unexpected actor kind: %v", entry["actor_kind"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["tenant"] != "t-1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
