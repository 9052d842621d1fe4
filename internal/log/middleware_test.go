// internal/log/middleware_test.go
package log

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestLoggerPassesThrough(t *testing.T) {
	var gotReqID string

	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("expected status 418, got %d", w.Code)
	}
	if gotReqID == "" {
		t.Error("expected request ID in context")
	}
}

func TestResponseWriterDefaultStatus(t *testing.T) {
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) // no explicit WriteHeader
	}))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestRequestLoggerHonorsInboundID(t *testing.T) {
	var gotReqID string
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-Id", "upstream-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if gotReqID != "upstream-42" {
		t.Errorf("expected inbound id to be kept, got %q", gotReqID)
	}
	if got := w.Header().Get("X-Request-Id"); got != "upstream-42" {
		t.Errorf("expected id echoed on response, got %q", got)
	}
}

// hijackRecorder fakes a hijack-capable writer, as net/http provides for
// real connections.
type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestRequestLoggerSupportsHijack(t *testing.T) {
	var sawHijacker bool

	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Websocket upgrades take this exact path
		hj, ok := w.(http.Hijacker)
		sawHijacker = ok
		if ok {
			hj.Hijack()
		}
	}))

	rec := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/realtime/v1/websocket", nil))

	if !sawHijacker {
		t.Fatal("wrapped writer must expose http.Hijacker")
	}
	if !rec.hijacked {
		t.Error("Hijack must reach the underlying writer")
	}
}

func TestRequestLoggerHijackUnsupported(t *testing.T) {
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatal("wrapped writer must expose http.Hijacker")
		}
		if _, _, err := hj.Hijack(); err == nil {
			t.Error("expected an error when the underlying writer cannot hijack")
		}
	}))

	// Plain recorder: no Hijack support underneath
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
}

func TestGetRequestIDMissing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("expected empty request ID, got %q", id)
	}
}
