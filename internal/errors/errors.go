// Package errors maps optimization and service errors onto HTTP and JSON-RPC
// responses.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/copyleftdev/divrect/internal/optimization"
)

var (
	// ErrInvalidRequest indicates a malformed or incomplete request.
	ErrInvalidRequest = stderrors.New("invalid request")
	// ErrNotFound indicates an unknown optimization job.
	ErrNotFound = stderrors.New("optimization not found")
	// ErrConflict indicates an operation that does not apply to the job's
	// current state, such as cancelling a finished job.
	ErrConflict = stderrors.New("conflicting job state")
	// ErrCapacity indicates that no job slot could be freed.
	ErrCapacity = stderrors.New("too many running optimizations")
	// ErrRateLimited indicates that jobs are being started too quickly.
	ErrRateLimited = stderrors.New("optimization start rate exceeded")
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
	CodeNotFound       = -32001
	CodeConflict       = -32002
	CodeCapacity       = -32003
	CodeRateLimited    = -32004
)

// StatusCode returns the HTTP status that best describes err.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict
	case stderrors.Is(err, ErrCapacity):
		return http.StatusServiceUnavailable
	case stderrors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case stderrors.Is(err, ErrInvalidRequest),
		stderrors.Is(err, optimization.ErrInvalidBounds),
		stderrors.Is(err, optimization.ErrInvalidConfig):
		return http.StatusBadRequest
	case stderrors.Is(err, optimization.ErrNonFiniteEvaluation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RPCCode returns the JSON-RPC error code that best describes err.
func RPCCode(err error) int {
	switch StatusCode(err) {
	case http.StatusBadRequest:
		return CodeInvalidParams
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusServiceUnavailable:
		return CodeCapacity
	case http.StatusTooManyRequests:
		return CodeRateLimited
	default:
		return CodeServerError
	}
}

// WriteJSON writes err as {"error": "..."} with the status from StatusCode.
func WriteJSON(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError || stderrors.Is(err, ErrCapacity) {
		msg = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
