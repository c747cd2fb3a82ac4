package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RateLimitConfig
		wantErr bool
	}{
		{"default write limit", DefaultWriteLimit(), false},
		{"zero requests", RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}, true},
		{"zero window", RateLimitConfig{RequestsPerWindow: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInMemoryRateLimitStore_Allow(t *testing.T) {
	tests := []struct {
		name          string
		requestCount  int
		limit         int
		wantAllowed   []bool
		wantRemaining []int
	}{
		{"under limit", 3, 5, []bool{true, true, true}, []int{4, 3, 2}},
		{"blocks at limit", 4, 3, []bool{true, true, true, false}, []int{2, 1, 0, 0}},
		{"single request limit", 2, 1, []bool{true, false}, []int{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryRateLimitStore()
			config := RateLimitConfig{RequestsPerWindow: tt.limit, WindowDuration: time.Minute}

			for i := 0; i < tt.requestCount; i++ {
				allowed, remaining, retryAfter := store.Allow(context.Background(), "k", config)
				if allowed != tt.wantAllowed[i] {
					t.Errorf("request %d: allowed=%v, want %v", i+1, allowed, tt.wantAllowed[i])
				}
				if remaining != tt.wantRemaining[i] {
					t.Errorf("request %d: remaining=%d, want %d", i+1, remaining, tt.wantRemaining[i])
				}
				if !allowed && (retryAfter < 1 || retryAfter > 60) {
					t.Errorf("request %d: retryAfter=%d out of range", i+1, retryAfter)
				}
			}
		})
	}
}

func TestInMemoryRateLimitStore_WindowResetAndCleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	current := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}

	if allowed, _, _ := store.Allow(context.Background(), "k", config); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _, _ := store.Allow(context.Background(), "k", config); allowed {
		t.Fatal("second request should be blocked")
	}

	current = current.Add(time.Minute)
	if allowed, _, _ := store.Allow(context.Background(), "k", config); !allowed {
		t.Error("request in a new window should be allowed")
	}

	current = current.Add(2 * time.Minute)
	store.Cleanup()
	if len(store.buckets) != 0 {
		t.Errorf("expected expired buckets to be removed, %d remain", len(store.buckets))
	}
}

func TestInMemoryRateLimitStore_Concurrent(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 50, WindowDuration: time.Minute}

	var mu sync.Mutex
	allowedCount := 0
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _, _ := store.Allow(context.Background(), "k", config); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 50 {
		t.Errorf("expected exactly 50 allowed, got %d", allowedCount)
	}
}

func TestRedisRateLimitStore_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	m := NewMetrics()
	store := NewRedisRateLimitStore(client, m, nil)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}

	for i := 0; i < 3; i++ {
		if allowed, _, _ := store.Allow(context.Background(), "k", config); !allowed {
			t.Fatalf("request %d should be allowed when Redis is unreachable", i+1)
		}
	}

	var metric dto.Metric
	if err := m.rateLimitRedisErrors.Write(&metric); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 3 {
		t.Errorf("expected 3 redis errors, got %v", got)
	}
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		name       string
		trust      bool
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded chain", true, map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.1"},
		{"single forwarded", true, map[string]string{"X-Forwarded-For": " 203.0.113.9 "}, "10.0.0.2:1234", "203.0.113.9"},
		{"real ip", true, map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:1234", "198.51.100.7"},
		{"forwarded ignored when untrusted", false, map[string]string{"X-Forwarded-For": "203.0.113.1"}, "10.0.0.2:1234", "10.0.0.2"},
		{"real ip ignored when untrusted", false, map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:1234", "10.0.0.2"},
		{"remote addr", false, nil, "192.0.2.5:4321", "192.0.2.5"},
		{"ipv6 remote addr", false, nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote addr without port", true, nil, "192.0.2.5", "192.0.2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := IPKeyFunc(tt.trust)(req); got != tt.want {
				t.Errorf("IPKeyFunc(%v) = %q, want %q", tt.trust, got, tt.want)
			}
		})
	}
}

// TestRateLimiter_RotatingForwardedFor verifies a client cannot reset its
// window by sending a new X-Forwarded-For value on each request.
func TestRateLimiter_RotatingForwardedFor(t *testing.T) {
	config := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	handler := RateLimiter(NewInMemoryRateLimitStore(), config, IPKeyFunc(false), nil, "promotion")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/courses/c1/promotion", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("status codes = %v, want %v", codes, want)
		}
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	config := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	handler := RateLimiter(NewInMemoryRateLimitStore(), config, IPKeyFunc(false), m, "settings")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/settings", nil)
		req.RemoteAddr = ip + ":1234"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send("192.0.2.1"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	rr := send("192.0.2.1")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if retry, err := strconv.Atoi(rr.Header().Get("Retry-After")); err != nil || retry < 1 {
		t.Errorf("expected positive Retry-After, got %q", rr.Header().Get("Retry-After"))
	}
	if rr.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected remaining 0, got %q", rr.Header().Get("X-RateLimit-Remaining"))
	}
	var body map[string]map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"]["code"] != "rate_limited" {
		t.Errorf("expected rate_limited code, got %v", body)
	}

	if rr := send("192.0.2.2"); rr.Code != http.StatusOK {
		t.Errorf("other clients should not be limited, got %d", rr.Code)
	}

	var metric dto.Metric
	if err := m.rateLimitBlocked.WithLabelValues("settings").Write(&metric); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Errorf("expected 1 blocked request, got %v", got)
	}
}
