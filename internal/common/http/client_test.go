package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_StampsHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(time.Second).WithBearerToken("tok").WithUserAgent("test-agent")
	ctx := WithRequestID(context.Background(), "req-1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "test-agent", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "req-1", got.Get(RequestIDHeader))
}

func TestClient_WithBearerTokenDoesNotMutateOriginal(t *testing.T) {
	base := NewClient(time.Second)
	authed := base.WithBearerToken("tok")

	assert.Empty(t, base.token)
	assert.Equal(t, "tok", authed.token)
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}
