package mw

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (r *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.hijacked = true
	return nil, nil, nil
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = RequestIDFrom(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got == "" || !strings.HasPrefix(got, "req_") {
		t.Fatalf("request id = %q, want generated req_ id", got)
	}
	if hdr := rr.Header().Get("X-Request-ID"); hdr != got {
		t.Fatalf("header id %q != context id %q", hdr, got)
	}
}

func TestRequestID_KeepsInboundHeader(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req_upstream")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "req_upstream" {
		t.Fatalf("request id = %q, want req_upstream", got)
	}
}

func TestRecover_PanicBecomes500(t *testing.T) {
	h := Recover(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/incoming-call", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestAccessLog_RecordsStatusAndPath(t *testing.T) {
	buf := &bytes.Buffer{}
	h := AccessLog(newJSONLogger(buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	h = RequestID(h)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/incoming-call", nil))

	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec); err != nil {
		t.Fatalf("unmarshal log: %v", err)
	}
	if got, ok := rec["status"].(float64); !ok || int(got) != http.StatusCreated {
		t.Fatalf("logged status=%v, want %d", rec["status"], http.StatusCreated)
	}
	if rec["path"] != "/incoming-call" {
		t.Fatalf("logged path=%v", rec["path"])
	}
	if id, _ := rec["request_id"].(string); id == "" {
		t.Fatal("expected request_id in access log")
	}
}

func TestAccessLog_ImplicitWriteIs200(t *testing.T) {
	buf := &bytes.Buffer{}
	h := AccessLog(newJSONLogger(buf), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec); err != nil {
		t.Fatalf("unmarshal log: %v", err)
	}
	if got, ok := rec["status"].(float64); !ok || int(got) != http.StatusOK {
		t.Fatalf("logged status=%v, want 200", rec["status"])
	}
}

func TestAccessLog_DelegatesHijack(t *testing.T) {
	writer := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	h := AccessLog(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("expected http.Hijacker through the access log wrapper")
		}
		if _, _, err := hj.Hijack(); err != nil {
			t.Fatalf("hijack failed: %v", err)
		}
	}))

	h.ServeHTTP(writer, httptest.NewRequest(http.MethodGet, "/media-stream", nil))

	if !writer.hijacked {
		t.Fatal("expected hijack to reach the underlying writer")
	}
}
