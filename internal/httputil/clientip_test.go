package httputil

import (
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		trust   bool
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "remote host and port", remote: "192.0.2.10:4431", want: "192.0.2.10"},
		{name: "remote IPv6 brackets stripped", remote: "[2001:db8::7]:4431", want: "2001:db8::7"},
		{name: "remote without port kept as is", remote: "192.0.2.10", want: "192.0.2.10"},
		{
			name:    "proxy headers ignored when untrusted",
			remote:  "10.1.0.5:8080",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.4", "X-Real-IP": "198.51.100.9"},
			want:    "10.1.0.5",
		},
		{
			name:    "first forwarded hop wins",
			trust:   true,
			remote:  "10.1.0.5:8080",
			headers: map[string]string{"X-Forwarded-For": " 198.51.100.4 , 10.1.0.2", "X-Real-IP": "198.51.100.9"},
			want:    "198.51.100.4",
		},
		{
			name:    "real IP used without forwarded header",
			trust:   true,
			remote:  "10.1.0.5:8080",
			headers: map[string]string{"X-Real-IP": "198.51.100.9"},
			want:    "198.51.100.9",
		},
		{
			name:    "garbage forwarded hop falls through to real IP",
			trust:   true,
			remote:  "10.1.0.5:8080",
			headers: map[string]string{"X-Forwarded-For": "unknown, 198.51.100.4", "X-Real-IP": "198.51.100.9"},
			want:    "198.51.100.9",
		},
		{
			name:    "garbage in both headers falls through to remote",
			trust:   true,
			remote:  "10.1.0.5:8080",
			headers: map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "-"},
			want:    "10.1.0.5",
		},
		{
			name:    "forwarded IPv6 canonicalized so limiter keys match",
			trust:   true,
			remote:  "10.1.0.5:8080",
			headers: map[string]string{"X-Forwarded-For": "2001:DB8:0:0::1"},
			want:    "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/stream/frames", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r, tt.trust); got != tt.want {
				t.Errorf("ClientIP(trust=%v) = %q, want %q", tt.trust, got, tt.want)
			}
		})
	}
}
