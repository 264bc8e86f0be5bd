package compressor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yokitheyo/thumbcache/internal/domain"
)

func TestNew_RequiresCredential(t *testing.T) {
	_, err := New("http://example.invalid", "", time.Second, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestCompress(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"Unauthorized","message":"Credentials are invalid"}`)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/shrink":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "original-bytes", string(body))
			w.Header().Set("Location", srv.URL+"/output/abc")
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"output":{"size":5,"type":"image/png"}}`)
		case r.Method == http.MethodGet && r.URL.Path == "/output/abc":
			_, _ = io.WriteString(w, "small")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", "secret", 5*time.Second, 1)
	require.NoError(t, err)

	out, err := c.Compress(context.Background(), []byte("original-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "small", string(out))

	bad, err := New(srv.URL, "wrong", 5*time.Second, 1)
	require.NoError(t, err)
	_, err = bad.Compress(context.Background(), []byte("original-bytes"))
	assert.ErrorIs(t, err, domain.ErrRemoteFailure)
}

func TestCompress_MissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"output":{}}`)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "secret", 5*time.Second, 1)
	require.NoError(t, err)

	_, err = c.Compress(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, domain.ErrRemoteFailure)
}
