package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/erazemk/prenos/internal/logger"
	"github.com/erazemk/prenos/internal/transfer"
)

// Codes used by the API layer itself. Engine errors carry their own.
const (
	codeUnauthorized = "UNAUTHORIZED"
	codeForbidden    = "FORBIDDEN"
	codeRateLimited  = "RATE_LIMITED"
	codeInternal     = "INTERNAL"
)

type errorBody struct {
	Error   string        `json:"error"`
	Code    string        `json:"code"`
	Details []fieldDetail `json:"details,omitempty"`
}

type fieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.FromContext(r.Context()).Warn("encoding response", zap.Error(err))
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	jsonResponse(w, r, status, errorBody{Error: message, Code: code})
}

// writeError maps an engine error to its status code. Anything without a
// code is logged and reported as a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := transfer.Code(err)
	var status int
	switch code {
	case transfer.ErrNotFound.Code:
		status = http.StatusNotFound
	case transfer.ErrInvalidRequest.Code:
		status = http.StatusBadRequest
	case transfer.ErrNoValidLines.Code:
		status = http.StatusUnprocessableEntity
	case transfer.ErrAlreadyCancelled.Code, transfer.ErrConcurrencyConflict.Code:
		status = http.StatusConflict
	default:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		jsonError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	jsonError(w, r, status, code, err.Error())
}

// decodeJSON decodes and validates a JSON request body. It writes the error
// response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, r, http.StatusRequestEntityTooLarge, transfer.ErrInvalidRequest.Code, "request body too large")
			return false
		}
		jsonError(w, r, http.StatusBadRequest, transfer.ErrInvalidRequest.Code, "invalid request body: "+err.Error())
		return false
	}

	if err := validate.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, r, err)
			return false
		}
		body := errorBody{Error: "request validation failed", Code: transfer.ErrInvalidRequest.Code}
		for _, fe := range verrs {
			// Namespace is prefixed with the Go type name of the body.
			field := fe.Namespace()
			if i := strings.IndexByte(field, '.'); i >= 0 {
				field = field[i+1:]
			}
			body.Details = append(body.Details, fieldDetail{Field: field, Message: validationMessage(fe)})
		}
		jsonResponse(w, r, http.StatusBadRequest, body)
		return false
	}
	return true
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must have at most " + fe.Param() + " entries"
	case "ne":
		return "cannot be " + fe.Param()
	case "nefield":
		return "must differ from " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil && n >= 0
}
