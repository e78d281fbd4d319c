package a2a

import (
	"strings"
	"time"

	"github.com/BaSui01/agentroute/types"
)

// MessageRoute is the routing engine's plan for a message: the ordered agent
// path, its hop count, and the strategy that produced it.
type MessageRoute struct {
	Path     []string      `json:"path"`
	Hops     int           `json:"hops"`
	Strategy RouteStrategy `json:"strategy"`

	// Fallback marks a route produced by the direct fallback after the
	// requested strategy failed.
	Fallback bool `json:"fallback,omitempty"`
}

// Destination returns the final agent on the path, or "" for an empty route.
func (r *MessageRoute) Destination() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[len(r.Path)-1]
}

// ResponseMetadata carries per-delivery measurements.
type ResponseMetadata struct {
	ProcessingTime time.Duration  `json:"processing_time"`
	Hops           int            `json:"hops,omitempty"`
	ResourceUsage  map[string]any `json:"resource_usage,omitempty"`
}

// TargetOutcome records one target's result inside a multi-target response.
type TargetOutcome struct {
	AgentID  string        `json:"agent_id"`
	Success  bool          `json:"success"`
	Error    *types.Error  `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Response is the outcome of dispatching an A2AMessage. CorrelationID echoes
// the message ID so callers can match responses to requests.
type Response struct {
	CorrelationID string       `json:"correlation_id"`
	Success       bool         `json:"success"`
	Result        any          `json:"result,omitempty"`
	Error         *types.Error `json:"error,omitempty"`

	// Cancelled marks a dispatch stopped by context cancellation rather than
	// by a target failure.
	Cancelled bool `json:"cancelled,omitempty"`

	Metadata ResponseMetadata `json:"metadata"`

	// Targets lists per-target outcomes for broadcast, consensus, and
	// pipeline dispatches.
	Targets []TargetOutcome `json:"targets,omitempty"`
}

// SuccessResponse builds a successful response correlated to msg.
func SuccessResponse(msg *A2AMessage, result any) *Response {
	return &Response{
		CorrelationID: msg.ID,
		Success:       true,
		Result:        result,
	}
}

// ErrorResponse builds a failed response correlated to msg.
func ErrorResponse(msg *A2AMessage, err *types.Error) *Response {
	return &Response{
		CorrelationID: msg.ID,
		Success:       false,
		Error:         err,
	}
}

// Approved reports whether the response counts as a yes vote in a consensus
// round. A vote is yes when the response succeeded and its result is the
// string "yes", the boolean true, or a map with a "vote" entry holding
// either.
func (r *Response) Approved() bool {
	if r == nil || !r.Success {
		return false
	}
	return voteValue(r.Result)
}

func voteValue(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "yes")
	case map[string]any:
		vote, ok := val["vote"]
		if !ok {
			return false
		}
		return voteValue(vote)
	default:
		return false
	}
}
