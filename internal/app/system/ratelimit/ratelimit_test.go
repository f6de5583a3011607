package ratelimit_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/ratelimit"
)

func TestLimiter_AllowAndRemaining(t *testing.T) {
	l := ratelimit.New(2, time.Minute)
	defer l.Stop()

	if !l.Allow("k") || !l.Allow("k") {
		t.Fatal("first two hits should be allowed")
	}
	if l.Allow("k") {
		t.Error("third hit should be refused")
	}
	if got := l.Remaining("k"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
	if got := l.Remaining("other"); got != 2 {
		t.Errorf("Remaining for unseen key = %d, want 2", got)
	}

	l.Reset("k")
	if !l.Allow("k") {
		t.Error("hit after Reset should be allowed")
	}
	l.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded first hop", "10.0.0.1, 10.0.0.2", "", "1.1.1.1:80", "10.0.0.1"},
		{"real ip", "", " 10.0.0.9 ", "1.1.1.1:80", "10.0.0.9"},
		{"remote with port", "", "", "192.168.0.5:1234", "192.168.0.5"},
		{"remote without port", "", "", "192.168.0.5", "192.168.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/login", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ratelimit.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginLimiter_EmailLimit(t *testing.T) {
	ll := ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute)
	defer ll.Stop()
	r := httptest.NewRequest("POST", "/login", nil)

	for i := 0; i < 2; i++ {
		if ok, _, _ := ll.Check(r, "Ana@BolaDeNeve.com"); !ok {
			t.Fatalf("attempt %d should pass", i+1)
		}
	}
	ok, kind, msg := ll.Check(r, " ana@boladeneve.com ")
	if ok || kind != ratelimit.LimitEmail || msg == "" {
		t.Errorf("Check = (%v, %q, %q), want email limit", ok, kind, msg)
	}

	ll.ResetEmail("ana@boladeneve.com")
	if ok, _, _ := ll.Check(r, "ana@boladeneve.com"); !ok {
		t.Error("attempt after ResetEmail should pass")
	}
}

func TestLoginLimiter_IPLimit(t *testing.T) {
	ll := ratelimit.NewLoginLimiterWithConfig(1, time.Minute, 100, time.Minute)
	defer ll.Stop()
	r := httptest.NewRequest("POST", "/login", nil)

	if ok, _, _ := ll.Check(r, "a@x.com"); !ok {
		t.Fatal("first attempt should pass")
	}
	if ok, kind, _ := ll.Check(r, "b@x.com"); ok || kind != ratelimit.LimitIP {
		t.Errorf("expected IP limit, got ok=%v kind=%q", ok, kind)
	}
}
