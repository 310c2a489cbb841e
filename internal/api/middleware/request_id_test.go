package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRequestID(t *testing.T, inbound string) (string, string) {
	t.Helper()

	var fromContext string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set("X-Request-ID", inbound)
	}
	w := httptest.NewRecorder()

	RequestID(handler).ServeHTTP(w, req)
	return fromContext, w.Header().Get("X-Request-ID")
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	fromContext, echoed := runRequestID(t, "")

	require.NotEmpty(t, fromContext)
	assert.Equal(t, fromContext, echoed)
	_, err := uuid.Parse(fromContext)
	assert.NoError(t, err)
}

func TestRequestID_EchoesWellFormedInbound(t *testing.T) {
	fromContext, echoed := runRequestID(t, "widget-abc_123.7")

	assert.Equal(t, "widget-abc_123.7", fromContext)
	assert.Equal(t, "widget-abc_123.7", echoed)
}

func TestRequestID_ReplacesUntrustedInbound(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
	}{
		{name: "control characters", inbound: "evil\nid"},
		{name: "spaces", inbound: "two words"},
		{name: "oversized", inbound: strings.Repeat("a", maxInboundRequestIDLen+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fromContext, echoed := runRequestID(t, tt.inbound)

			assert.NotEqual(t, tt.inbound, fromContext)
			assert.Equal(t, fromContext, echoed)
			_, err := uuid.Parse(fromContext)
			assert.NoError(t, err)
		})
	}
}
