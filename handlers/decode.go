package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kevinaaaquil/library/common"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return common.Validation("", "request body too large")
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return common.Validation(typeErr.Field, "%s has the wrong type", typeErr.Field)
	}
	return common.Validation("", "invalid json")
}
