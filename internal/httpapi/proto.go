package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/BrandonDHaskell/labtrack/internal/labtrack/snapshot"
)

// maxRequestBody caps JSON request bodies for scans and heartbeats.
const maxRequestBody = 4096

// maxImportBody caps snapshot imports.
const maxImportBody = 32 << 20

var errBadJSON = errors.New("invalid JSON body")

// isProtobuf reports whether the request body is protobuf wire format.
func isProtobuf(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == snapshot.ContentType ||
		mt == "application/protobuf" ||
		mt == "application/octet-stream"
}

// wantsProtobuf reports whether the client asked for protobuf output.
func wantsProtobuf(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := mime.ParseMediaType(strings.TrimSpace(part))
		if mt == snapshot.ContentType || mt == "application/protobuf" {
			return true
		}
	}
	return r.URL.Query().Get("format") == "protobuf"
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

func readLimited(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
}

// writeBinary writes a protobuf-wire payload with the given status.
func writeBinary(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", snapshot.ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
