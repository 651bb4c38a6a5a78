package securecore

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		trustProxy bool
		proxyCount int
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.5:4567",
			want:       "203.0.113.5",
		},
		{
			name:       "xff ignored without trust",
			remoteAddr: "203.0.113.5:4567",
			xff:        "198.51.100.1",
			want:       "203.0.113.5",
		},
		{
			name:       "xff honored with trust",
			remoteAddr: "10.0.0.1:80",
			xff:        "198.51.100.1, 10.0.0.1",
			trustProxy: true,
			proxyCount: 1,
			want:       "198.51.100.1",
		},
		{
			name:       "multi proxy chain",
			remoteAddr: "10.0.0.1:80",
			xff:        "198.51.100.1, 192.0.2.44, 10.0.0.2, 10.0.0.1",
			trustProxy: true,
			proxyCount: 2,
			want:       "192.0.2.44",
		},
		{
			name:       "short chain falls back to leftmost",
			remoteAddr: "10.0.0.1:80",
			xff:        "198.51.100.1",
			trustProxy: true,
			proxyCount: 3,
			want:       "198.51.100.1",
		},
		{
			name:       "invalid xff entry falls through to real ip",
			remoteAddr: "10.0.0.1:80",
			xff:        "not-an-ip",
			xRealIP:    "198.51.100.7",
			trustProxy: true,
			want:       "198.51.100.7",
		},
		{
			name:       "x-real-ip with trust",
			remoteAddr: "10.0.0.1:80",
			xRealIP:    "198.51.100.7",
			trustProxy: true,
			want:       "198.51.100.7",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.5",
			want:       "203.0.113.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				r.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := ClientIP(r, tt.trustProxy, tt.proxyCount); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
