package realip

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestTrustedProxies_IsTrusted(t *testing.T) {
	tp := NewTrustedProxies([]string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "not-an-ip"})

	tests := []struct {
		ip      string
		trusted bool
	}{
		{"127.0.0.1", true},
		{"10.255.255.255", true},
		{"192.168.1.1", false},
		{"8.8.8.8", false},
		{"::1", true},
		{"::2", false},
		{"::ffff:127.0.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			got := tp.IsTrusted(netip.MustParseAddr(tt.ip))
			if got != tt.trusted {
				t.Errorf("IsTrusted(%s) = %v, want %v", tt.ip, got, tt.trusted)
			}
		})
	}
}

func TestClientAddr(t *testing.T) {
	tp := NewTrustedProxies([]string{"127.0.0.0/8", "10.0.0.0/8", "::1/128"})

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct untrusted ignores headers", "192.168.1.100:12345", "8.8.8.8", "", "192.168.1.100"},
		{"trusted peer single hop", "127.0.0.1:12345", "8.8.8.8", "", "8.8.8.8"},
		{"rightmost untrusted hop wins", "127.0.0.1:12345", "1.1.1.1, 8.8.8.8, 10.0.0.1", "", "8.8.8.8"},
		{"all hops trusted", "127.0.0.1:12345", "10.0.0.2, 10.0.0.1", "", "10.0.0.2"},
		{"x-real-ip fallback", "127.0.0.1:12345", "", "1.2.3.4", "1.2.3.4"},
		{"ipv6 peer", "[::1]:12345", "2001:db8::1", "", "2001:db8::1"},
		{"bare remote addr", "192.168.1.1", "", "", "192.168.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			if got := tp.GetClientIPString(req); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGetClientIPString_Unknown(t *testing.T) {
	tp := NewTrustedProxies(nil)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "garbage"

	if got := tp.GetClientIPString(req); got != "unknown" {
		t.Errorf("got %q, want unknown", got)
	}
}

func TestNewTrustedProxies_SingleIP(t *testing.T) {
	tp := NewTrustedProxies([]string{"192.168.1.1"})

	if !tp.IsTrusted(netip.MustParseAddr("192.168.1.1")) {
		t.Error("expected 192.168.1.1 to be trusted")
	}
	if tp.IsTrusted(netip.MustParseAddr("192.168.1.2")) {
		t.Error("expected 192.168.1.2 to not be trusted")
	}
}
