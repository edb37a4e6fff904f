package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"cam-streamd/pkg/capture"
)

func newTestServer(t *testing.T) *Server {
	driver := capture.New(capture.Options{Logger: zaptest.NewLogger(t).Sugar()})
	return New(driver, 0, zaptest.NewLogger(t).Sugar())
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(t)

	w := get(s, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string       `json:"status"`
		Data   statusReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "uninitialized", body.Data.State)
	assert.Equal(t, s.session, body.Data.Session)
	assert.Zero(t, body.Data.Frames.Published)
}

func TestGetControls(t *testing.T) {
	s := newTestServer(t)

	w := get(s, "/api/controls")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string          `json:"status"`
		Data   []controlReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "success", body.Status)
	// Nothing declared yet: the driver never started.
	assert.Empty(t, body.Data)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	w := get(s, "/api/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
