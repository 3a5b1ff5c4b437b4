package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Strob0t/PertForge/internal/domain"
	"github.com/Strob0t/PertForge/internal/domain/schedule"
	"github.com/Strob0t/PertForge/internal/resilience"
	"github.com/Strob0t/PertForge/internal/service"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON reads a body of at most bodyLimit bytes, checks it against
// schema and decodes it into T. On failure it writes the error response
// and returns false.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64, schema *jsonschema.Schema) (T, bool) {
	var v T
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, bodyLimit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}

	if schema != nil {
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return v, false
		}
		if err := schema.Validate(doc); err != nil {
			writeSchemaError(w, err)
			return v, false
		}
	}

	if err := json.Unmarshal(data, &v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// queryBool reads a boolean query parameter; absent or malformed is false.
func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

// errorResponse is the single error body shape of the API.
type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details any    `json:"details,omitempty"`
}

const (
	kindValidation     = "validation"
	kindLimitExceeded  = "limit_exceeded"
	kindSchemaMismatch = "schema"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorBody maps err to a status code and body. Scheduling failures carry
// their kind and the offending identifiers.
func errorBody(err error, notFoundMsg string) (int, errorResponse) {
	if kind := schedule.Kind(err); kind != "" {
		return http.StatusUnprocessableEntity, errorResponse{
			Error:   err.Error(),
			Kind:    kind,
			Details: schedule.Details(err),
		}
	}
	switch {
	case errors.Is(err, service.ErrLimitExceeded):
		return http.StatusUnprocessableEntity, errorResponse{Error: trimValidation(err), Kind: kindLimitExceeded}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: notFoundMsg}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, errorResponse{Error: "resource already exists"}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: trimValidation(err), Kind: kindValidation}
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable, errorResponse{Error: "snapshot store unavailable"}
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	status, body := errorBody(err, notFoundMsg)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "error", err)
	}
	writeJSON(w, status, body)
}

func trimValidation(err error) string {
	msg := err.Error()
	msg = strings.TrimPrefix(msg, domain.ErrValidation.Error()+": ")
	return strings.TrimSuffix(msg, ": "+domain.ErrValidation.Error())
}

type schemaViolation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// writeSchemaError reports the leaf causes of a schema validation failure.
func writeSchemaError(w http.ResponseWriter, err error) {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var leaves []schemaViolation
	collectViolations(ve, &leaves)
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   "request does not match schema",
		Kind:    kindSchemaMismatch,
		Details: leaves,
	})
}

func collectViolations(ve *jsonschema.ValidationError, out *[]schemaViolation) {
	if len(ve.Causes) == 0 {
		path := ve.InstanceLocation
		if path == "" {
			path = "/"
		}
		*out = append(*out, schemaViolation{Path: path, Message: ve.Message})
		return
	}
	for _, c := range ve.Causes {
		collectViolations(c, out)
	}
}
