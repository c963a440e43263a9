package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentItems)
	l.InfoContext(context.Background(), "created", FieldItemID, 7)

	out := buf.String()
	if !strings.Contains(out, "component=items") || !strings.Contains(out, "item_id=7") {
		t.Errorf("unexpected log line: %s", out)
	}
}

func TestRequestMiddlewareTagsIDs(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		want      []string
		absent    string
	}{
		{
			name:   "request only",
			want:   []string{"component=http", "request_id=req-1"},
			absent: "session_id",
		},
		{
			name:      "with filter session",
			sessionID: "0b6f3c1e-8d7a-4a57-9b1e-2f4f5c6d7e8f",
			want:      []string{"request_id=req-1", "session_id=0b6f3c1e-8d7a-4a57-9b1e-2f4f5c6d7e8f"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newBufferLogger(&buf, ComponentApp)

			var got *Logger
			h := Middleware(l)(RequestMiddleware(ComponentHTTP, "X-Request-ID", "X-Session-ID")(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					got = FromContext(r.Context())
				})))
			req := httptest.NewRequest(http.MethodGet, "/api/view", nil)
			req.Header.Set("X-Request-ID", "req-1")
			if tt.sessionID != "" {
				req.Header.Set("X-Session-ID", tt.sessionID)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got == nil {
				t.Fatal("logger missing from context")
			}
			if got.Component() != ComponentHTTP {
				t.Errorf("Component() = %q, want http", got.Component())
			}
			got.Info("hello")
			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("missing %s in %s", want, out)
				}
			}
			if tt.absent != "" && strings.Contains(out, tt.absent) {
				t.Errorf("unexpected %s in %s", tt.absent, out)
			}
		})
	}
}

func TestLogHTTPEndLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{422, "level=WARN"},
		{503, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(newBufferLogger(&buf, ComponentHTTP))
		req := httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(`{"name":"Crib"}`))
		sl.LogHTTPEnd(context.Background(), req, tt.status, 42, 3, "10.0.0.1")

		out := buf.String()
		for _, want := range []string{tt.level, "response_bytes=42", "duration_ms=3", "client_ip=10.0.0.1"} {
			if !strings.Contains(out, want) {
				t.Errorf("status %d: missing %s in %s", tt.status, want, out)
			}
		}
	}
}

func TestLogHTTPStartIncludesBodySize(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentHTTP))
	req := httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(`{"name":"Crib"}`))
	sl.LogHTTPStart(context.Background(), req, "10.0.0.1")

	if out := buf.String(); !strings.Contains(out, "content_length=15") || !strings.Contains(out, "level=DEBUG") {
		t.Errorf("unexpected start record: %s", out)
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("expected fallback logger with unknown component")
	}
}

func TestStructuredLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentApp))
	sl.LogError(context.Background(), "boom", errors.New("disk full"), ComponentStorage, OpUpdate, nil)

	out := buf.String()
	for _, want := range []string{"level=ERROR", "error=\"disk full\"", "operation=update"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestLogFieldsWithItem(t *testing.T) {
	f := NewFields().WithItem(3, "").WithLabel(9, "Nursery")
	if _, ok := f[FieldItemName]; ok {
		t.Error("empty item name should be omitted")
	}
	if f[FieldLabelName] != "Nursery" || f[FieldItemID] != int64(3) {
		t.Errorf("unexpected fields: %v", f)
	}
}
