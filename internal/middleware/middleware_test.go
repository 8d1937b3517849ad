package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimiter_FixedWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(okHandler)

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/join", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send("10.0.0.1:5000"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}

	// A different source port is the same client.
	rr := send("10.0.0.1:6000")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rr.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	json.NewDecoder(rr.Body).Decode(&body)
	if body.Error.Code != "RATE_LIMITED" {
		t.Errorf("Expected RATE_LIMITED, got %q", body.Error.Code)
	}

	if rr := send("10.0.0.2:5000"); rr.Code != http.StatusOK {
		t.Errorf("Expected other clients unaffected, got %d", rr.Code)
	}

	now = now.Add(time.Minute)
	if rr := send("10.0.0.1:5000"); rr.Code != http.StatusOK {
		t.Errorf("Expected a new window to reset the count, got %d", rr.Code)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("a")
	now = now.Add(2 * time.Minute)
	rl.allow("b")
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["a"]; ok {
		t.Error("Expected idle visitor to be swept")
	}
	if _, ok := rl.visitors["b"]; !ok {
		t.Error("Expected active visitor to be kept")
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
		t.Errorf("Expected a generated id echoed back, got request %q response %q", seen, rr.Header().Get(RequestIDHeader))
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "abc-123" || rr.Header().Get(RequestIDHeader) != "abc-123" {
		t.Errorf("Expected caller id kept, got %q", seen)
	}
}

func TestCORS_AllowsConfiguredOrigins(t *testing.T) {
	h := CORS("http://localhost:5173, https://class.example.com")(okHandler)

	tests := []struct {
		origin string
		want   string
	}{
		{"https://class.example.com", "https://class.example.com"},
		{"https://evil.example.com", ""},
	}
	for _, tc := range tests {
		t.Run(tc.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
			req.Header.Set("Origin", tc.origin)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
				t.Errorf("Expected allow-origin %q, got %q", tc.want, got)
			}
		})
	}
}
