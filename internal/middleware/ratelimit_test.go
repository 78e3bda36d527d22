package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/graphvis3d/internal/apierr"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/api/layout/frame", nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiter_GlobalLimit(t *testing.T) {
	rl := NewRateLimiter(1.0, 2, 10.0, 10)
	defer rl.Stop()
	handler := rl.Limit(okHandler())

	for i, remote := range []string{"192.168.1.1:1234", "192.168.1.1:1234"} {
		if rr := doRequest(handler, remote); rr.Code != http.StatusOK {
			t.Errorf("request %d failed: got %d, want %d", i, rr.Code, http.StatusOK)
		}
	}

	rr := doRequest(handler, "192.168.1.2:1234")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third request should be rate limited: got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	var resp apierr.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != apierr.ErrRateLimitGlobal {
		t.Errorf("expected %s, got %s", apierr.ErrRateLimitGlobal, resp.Error.Code)
	}
}

func TestRateLimiter_PerIPLimit(t *testing.T) {
	rl := NewRateLimiter(100.0, 100, 1.0, 2)
	defer rl.Stop()
	handler := rl.Limit(okHandler())

	tests := []struct {
		remote string
		want   int
	}{
		{"192.168.1.1:1234", http.StatusOK},
		{"192.168.1.1:5678", http.StatusOK},
		{"192.168.1.1:9999", http.StatusTooManyRequests},
		{"192.168.1.2:1234", http.StatusOK},
	}
	for i, tt := range tests {
		if rr := doRequest(handler, tt.remote); rr.Code != tt.want {
			t.Errorf("request %d from %s: got %d, want %d", i, tt.remote, rr.Code, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:    "x-forwarded-for first hop",
			headers: map[string]string{"X-Forwarded-For": " 203.0.113.1 , 198.51.100.1"},
			remote:  "192.168.1.1:1234",
			want:    "203.0.113.1",
		},
		{
			name:    "x-real-ip",
			headers: map[string]string{"X-Real-IP": "203.0.113.1"},
			remote:  "192.168.1.1:1234",
			want:    "203.0.113.1",
		},
		{name: "remote addr", remote: "192.168.1.1:1234", want: "192.168.1.1"},
		{name: "ipv6 remote addr", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "remote addr without port", remote: "192.168.1.1", want: "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(10.0, 10, 10.0, 10)
	defer rl.Stop()

	now := time.Now()
	rl.getLimiter("192.168.1.1", now.Add(-2*rateLimitIdleTimeout))
	rl.getLimiter("192.168.1.2", now)

	if n := rl.clients(); n != 2 {
		t.Fatalf("expected 2 clients, got %d", n)
	}
	if evicted := rl.evictIdle(now); evicted != 1 {
		t.Errorf("expected 1 eviction, got %d", evicted)
	}
	if n := rl.clients(); n != 1 {
		t.Errorf("expected 1 client left, got %d", n)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(10.0, 10, 10.0, 10)
	rl.Stop()
	rl.Stop()
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(100.0, 100, 10.0, 10)
	defer rl.Stop()
	handler := rl.Limit(okHandler())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				doRequest(handler, fmt.Sprintf("192.168.1.%d:1234", n))
			}
		}(i)
	}
	wg.Wait()
}

func TestRateLimiter_AfterWait(t *testing.T) {
	rl := NewRateLimiter(10.0, 1, 10.0, 1)
	defer rl.Stop()
	handler := rl.Limit(okHandler())

	doRequest(handler, "192.168.1.1:1234")
	if rr := doRequest(handler, "192.168.1.1:1234"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("request should be rate limited: got %d", rr.Code)
	}

	time.Sleep(150 * time.Millisecond)

	if rr := doRequest(handler, "192.168.1.1:1234"); rr.Code != http.StatusOK {
		t.Errorf("request after wait should succeed: got %d", rr.Code)
	}
}
