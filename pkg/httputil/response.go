package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is an admin response encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func (f Format) contentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Negotiate picks the response format. An explicit ?format= wins over the
// Accept header, and fallback applies when neither names a known format.
func Negotiate(r *http.Request, fallback Format) Format {
	switch Format(strings.ToLower(r.URL.Query().Get("format"))) {
	case FormatJSON:
		return FormatJSON
	case FormatYAML:
		return FormatYAML
	}

	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "application/json"):
		return FormatJSON
	case strings.Contains(accept, "yaml"):
		return FormatYAML
	}
	return fallback
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error string `json:"error" yaml:"error"`
}

// Write encodes data in format and sends it with status. Nothing is sent
// before encoding succeeds, so a failed encode still yields a clean 500.
func Write(w http.ResponseWriter, format Format, status int, data interface{}) error {
	var buf bytes.Buffer
	var err error
	if format == FormatYAML {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(data); err == nil {
			err = enc.Close()
		}
	} else {
		err = json.NewEncoder(&buf).Encode(data)
	}
	if err != nil {
		WriteInternalError(w, err)
		return err
	}

	w.Header().Set("Content-Type", format.contentType())
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

// WriteJSON sends data as JSON
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	return Write(w, FormatJSON, status, data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", FormatJSON.contentType())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// WriteBadRequest rejects a malformed query (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

// WriteNotFoundError reports an unknown plugin or route target (404)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

// WriteConflict reports a graph that cannot be ordered (409)
func WriteConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, message)
}

// WriteInternalError reports err as a 500
func WriteInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, err.Error())
}
