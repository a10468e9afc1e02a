package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atelier-ai/atelier/internal/security"
)

func TestURLValidator_Validate(t *testing.T) {
	t.Parallel()
	v := security.NewURLValidator()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"public https", "https://example.com/page", false},
		{"public http", "http://example.com", false},
		{"public with port", "https://example.com:8443/x", false},
		{"file scheme", "file:///etc/passwd", true},
		{"gopher scheme", "gopher://example.com", true},
		{"empty host", "https://", true},
		{"localhost", "http://localhost:8080", true},
		{"localhost mixed case", "http://LocalHost/admin", true},
		{"loopback ip", "http://127.0.0.1/", true},
		{"loopback range", "http://127.8.8.8/", true},
		{"ipv6 loopback", "http://[::1]/", true},
		{"private 10", "http://10.0.0.5/", true},
		{"private 172", "http://172.16.1.1/", true},
		{"private 192", "http://192.168.1.1/", true},
		{"link local", "http://169.254.1.1/", true},
		{"cloud metadata", "http://169.254.169.254/latest/meta-data/", true},
		{"metadata hostname", "http://metadata.google.internal/", true},
		{"unspecified", "http://0.0.0.0/", true},
		{"multicast", "http://224.0.0.1/", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(tt.url)
			if tt.wantErr {
				assert.ErrorIs(t, err, security.ErrUnsafeURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
