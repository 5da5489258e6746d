package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"folio/internal/apperr"
	"folio/internal/logging"

	"github.com/gorilla/mux"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// writeJSON encodes v as JSON with the given status. Encoding errors are
// logged since the header is already out.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// respond writes the result envelope for value and err.
func respond[T any](w http.ResponseWriter, value T, err error) {
	res := apperr.ResultOf(value, err)
	if err != nil && apperr.KindOf(err) == apperr.Internal {
		logging.Error("request failed: %v", err)
	}
	writeJSON(w, res.Status(), res)
}

// respondErr writes a failed envelope.
func respondErr(w http.ResponseWriter, err error) {
	respond[any](w, nil, err)
}

// respondOK writes {"ok":true} with no value.
func respondOK(w http.ResponseWriter, err error) {
	respond[any](w, nil, err)
}

// decodeJSON reads the request body into v. A malformed body is an
// InvalidOperation.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.InvalidOperation, "decode request", "request body is empty")
		}
		return apperr.New(apperr.InvalidOperation, "decode request", "invalid request body: %v", err)
	}
	return nil
}

// pathID returns the {id} route variable.
func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// optionalID turns "" into nil.
func optionalID(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
