//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestWith(t *testing.T) {
	// --- Arrange ---
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := WithJobID(WithUserID(WithTraceID(context.Background(), "tr-1"), "user-1"), "job-1")

	// --- Act ---
	With(ctx, &base).Info().Msg("hello")

	// --- Assert ---
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("expected json log line, but got %q", buf.String())
	}
	for key, want := range map[string]string{"trace_id": "tr-1", "user_id": "user-1", "job_id": "job-1"} {
		if got[key] != want {
			t.Errorf("expected %s=%s, but got %v", key, want, got[key])
		}
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("short", false); got != "***" {
		t.Errorf("expected ***, but got %s", got)
	}
	if got := Redact("supersecretvalue", false); got != "supe...ue" {
		t.Errorf("expected supe...ue, but got %s", got)
	}
	if got := Redact("supersecretvalue", true); got != "supersecretvalue" {
		t.Errorf("expected value unchanged in dev, but got %s", got)
	}
}
