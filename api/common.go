package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/BaSui01/agentroute/types"
	"go.uber.org/zap"
)

// Envelope is the uniform API response shape.
type Envelope struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorInfo is the serialized form of a router error.
type ErrorInfo struct {
	Code      string `json:"code,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func writeError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := kindToHTTPStatus(err.Kind)
	if logger != nil {
		logger.Warn("api error",
			zap.String("kind", string(err.Kind)),
			zap.String("code", string(err.Code)),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, Envelope{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(err.Code),
			Kind:      string(err.Kind),
			Message:   err.Message,
			Retryable: err.Retryable,
			AgentID:   err.AgentID,
		},
		Timestamp: time.Now().UTC(),
	})
}

func kindToHTTPStatus(kind types.ErrorKind) int {
	switch kind {
	case types.KindValidation, types.KindSerialization, types.KindProtocol:
		return http.StatusBadRequest
	case types.KindAuthentication:
		return http.StatusUnauthorized
	case types.KindAuthorization:
		return http.StatusForbidden
	case types.KindCapabilityNotFound:
		return http.StatusNotFound
	case types.KindStateConflict:
		return http.StatusConflict
	case types.KindResourceExhausted:
		return http.StatusTooManyRequests
	case types.KindTimeout:
		return http.StatusGatewayTimeout
	case types.KindAgentUnavailable, types.KindInsufficientParticipants:
		return http.StatusServiceUnavailable
	case types.KindRouting:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, types.New(types.KindSerialization, "invalid JSON body").WithCause(err), logger)
		return false
	}
	return true
}
