package ddnsrelay_test

import (
	"net/http/httptest"
	"testing"

	"github.com/Travis-Britz/ddnsrelay"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trusted    []string
		want       string
	}{
		{"peer only", "192.0.2.10:4321", "", "", nil, "192.0.2.10"},
		{"real ip wins", "192.0.2.10:4321", "1.2.3.4", "5.6.7.8", nil, "1.2.3.4"},
		{"first forwarded entry", "192.0.2.10:4321", "", "5.6.7.8, 9.9.9.9", nil, "5.6.7.8"},
		{"forwarded without spaces", "192.0.2.10:4321", "", "5.6.7.8,9.9.9.9", nil, "5.6.7.8"},
		{"blank real ip ignored", "192.0.2.10:4321", "  ", "5.6.7.8", nil, "5.6.7.8"},
		{"peer without port", "192.0.2.10", "", "", nil, "192.0.2.10"},
		{"ipv6 peer", "[2001:db8::1]:4321", "", "", nil, "2001:db8::1"},
		{"untrusted peer ignores headers", "192.0.2.10:4321", "1.2.3.4", "5.6.7.8", []string{"10.0.0.0/8"}, "192.0.2.10"},
		{"trusted peer honors headers", "10.0.0.5:4321", "", "5.6.7.8, 10.0.0.5", []string{"10.0.0.0/8"}, "5.6.7.8"},
		{"trusted single address", "127.0.0.1:4321", "1.2.3.4", "", []string{"127.0.0.1"}, "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefixes, err := ddnsrelay.ParsePrefixes(tt.trusted...)
			if err != nil {
				t.Fatalf("ParsePrefixes failed: %s", err)
			}
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ddnsrelay.ClientIP(r, prefixes); got != tt.want {
				t.Fatalf("Expected %q; got %q", tt.want, got)
			}
		})
	}
}

func TestParsePrefixes(t *testing.T) {
	prefixes, err := ddnsrelay.ParsePrefixes("10.0.0.0/8", " 192.168.1.1 ", "", "fd00::/8")
	if err != nil {
		t.Fatalf("ParsePrefixes failed: %s", err)
	}
	if expected, got := 3, len(prefixes); expected != got {
		t.Fatalf("Expected %d prefixes; got %d", expected, got)
	}
	if expected, got := "192.168.1.1/32", prefixes[1].String(); expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}

	for _, bad := range []string{"10.0.0.0/99", "example.com"} {
		if _, err := ddnsrelay.ParsePrefixes(bad); err == nil {
			t.Fatalf("Expected an error for %q; got err == nil", bad)
		}
	}
}
