package httputil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteJSON(w, http.StatusAccepted, map[string]int{"count": 2}))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count": 2}`, w.Body.String())
}

func TestWrite_YAML(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, Write(w, FormatYAML, http.StatusOK, map[string]string{"outcome": "success"}))

	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Equal(t, "outcome: success\n", w.Body.String())
}

func TestWrite_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	err := Write(w, FormatJSON, http.StatusOK, map[string]interface{}{"ch": make(chan int)})

	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		accept string
		want   Format
	}{
		{"fallback", "/report", "", FormatYAML},
		{"query json", "/report?format=json", "", FormatJSON},
		{"query wins", "/report?format=YAML", "application/json", FormatYAML},
		{"accept json", "/report", "application/json", FormatJSON},
		{"accept yaml", "/report", "application/x-yaml", FormatYAML},
		{"unknown query", "/report?format=xml", "", FormatYAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, Negotiate(r, FormatYAML))
		})
	}
}

func TestWriteErrors(t *testing.T) {
	tests := []struct {
		name  string
		write func(http.ResponseWriter)
		code  int
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "boom") }, http.StatusBadRequest},
		{"not found", func(w http.ResponseWriter) { WriteNotFoundError(w, "boom") }, http.StatusNotFound},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "boom") }, http.StatusConflict},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, assert.AnError) }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.code, w.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestParseQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?depth=3&transitive=false&bad=yes&direction=both", nil)

	depth, err := ParseQueryInt(r, "depth", -1)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	depth, err = ParseQueryInt(r, "missing", -1)
	require.NoError(t, err)
	assert.Equal(t, -1, depth)

	_, err = ParseQueryInt(r, "direction", 0)
	assert.Error(t, err)

	transitive, err := ParseQueryBool(r, "transitive", true)
	require.NoError(t, err)
	assert.False(t, transitive)

	_, err = ParseQueryBool(r, "bad", true)
	assert.Error(t, err)

	assert.Equal(t, "both", ParseQueryString(r, "direction", "dependencies"))
	assert.Equal(t, "dependencies", ParseQueryString(r, "other", "dependencies"))
}

func TestMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	log := logrus.NewEntry(logger)

	router := mux.NewRouter()
	router.Use(RequestIDMiddleware, RecoveryMiddleware(log), LoggingMiddleware(log))
	router.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	router.HandleFunc("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "abc", hook.LastEntry().Data["request_id"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	var panicked bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			panicked = true
		}
	}
	assert.True(t, panicked)
}
