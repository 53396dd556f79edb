package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	apierrors "github.com/copyleftdev/divrect/internal/errors"
	"github.com/copyleftdev/divrect/internal/optimization/objectives"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
//
// Methods:
//
//	optimization.start      {"objective": "branin", "max_iterations": 50}
//	optimization.status     {"optimization_id": "opt_..."}
//	optimization.cancel     {"optimization_id": "opt_..."}
//	optimization.objectives
//
// Params may be an object or a one-element array holding the object.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, apierrors.CodeParseError, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, apierrors.CodeInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var (
		result interface{}
		err    error
	)
	switch request.Method {
	case "optimization.start":
		var req StartRequest
		if err = decodeParams(request.Params, &req); err == nil {
			result, err = s.startOptimization(req)
		}
	case "optimization.status":
		var p idParams
		if err = decodeIDParams(request.Params, &p); err == nil {
			result, err = s.optimizationStatus(p.ID)
		}
	case "optimization.cancel":
		var p idParams
		if err = decodeIDParams(request.Params, &p); err == nil {
			if err = s.cancelOptimization(p.ID); err == nil {
				result = map[string]string{"status": string(StatusCancelled)}
			}
		}
	case "optimization.objectives":
		result = objectives.Catalog()
	default:
		s.respondWithError(w, apierrors.CodeMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, apierrors.RPCCode(err), err.Error(), request.ID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// decodeParams decodes an object, or the first element of an array, into v.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: missing required parameters", apierrors.ErrInvalidRequest)
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("%w: %v", apierrors.ErrInvalidRequest, err)
		}
		if len(list) == 0 {
			return fmt.Errorf("%w: missing required parameters", apierrors.ErrInvalidRequest)
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: invalid parameter format, expected object: %v", apierrors.ErrInvalidRequest, err)
	}
	return nil
}

func decodeIDParams(raw json.RawMessage, p *idParams) error {
	if err := decodeParams(raw, p); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("%w: optimization_id is required", apierrors.ErrInvalidRequest)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("JSON-RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}
