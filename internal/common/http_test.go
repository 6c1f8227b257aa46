package common_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/common"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.2:443", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:443", "198.51.100.4"},
		{"garbage header ignored", map[string]string{"X-Forwarded-For": "unknown"}, "192.0.2.7:5555", "192.0.2.7"},
		{"mapped v4", map[string]string{"X-Forwarded-For": "::ffff:192.0.2.1"}, "", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.8", "192.0.2.8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tc.want, common.ClientIP(req))
		})
	}
	require.Empty(t, common.ClientIP(nil))
}
