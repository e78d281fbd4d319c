package a2a

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority orders messages by urgency. Critical and high priority messages
// are routed directly, bypassing load balancing.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// IsValid reports whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

// RouteStrategy names a routing algorithm of the routing engine.
type RouteStrategy string

const (
	StrategyDirect          RouteStrategy = "direct"
	StrategyLoadBalanced    RouteStrategy = "load_balanced"
	StrategyCapabilityAware RouteStrategy = "capability_aware"
	StrategyCostOptimized   RouteStrategy = "cost_optimized"
	StrategyShortestPath    RouteStrategy = "shortest_path"
)

// broadcastRecipient is the wire value marking a broadcast message.
const broadcastRecipient = "broadcast"

// Recipients is the destination of a message: a single agent, an explicit
// list, or every registered agent (broadcast). The zero value is invalid.
type Recipients struct {
	ids       []string
	broadcast bool
}

// To addresses a single agent.
func To(agentID string) Recipients {
	return Recipients{ids: []string{agentID}}
}

// ToMany addresses an explicit list of agents.
func ToMany(agentIDs ...string) Recipients {
	ids := make([]string, len(agentIDs))
	copy(ids, agentIDs)
	return Recipients{ids: ids}
}

// ToBroadcast addresses every registered agent.
func ToBroadcast() Recipients {
	return Recipients{broadcast: true}
}

// IsZero reports whether the recipients value is unset.
func (r Recipients) IsZero() bool {
	return !r.broadcast && len(r.ids) == 0
}

// IsBroadcast reports whether the message addresses all agents.
func (r Recipients) IsBroadcast() bool { return r.broadcast }

// IsMultiple reports whether the message addresses an explicit list of more
// than one agent.
func (r Recipients) IsMultiple() bool { return !r.broadcast && len(r.ids) > 1 }

// Single returns the sole recipient, if there is exactly one.
func (r Recipients) Single() (string, bool) {
	if !r.broadcast && len(r.ids) == 1 {
		return r.ids[0], true
	}
	return "", false
}

// List returns the explicit recipient list. Empty for broadcast.
func (r Recipients) List() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// MarshalJSON encodes a single recipient as a string, a list as an array,
// and broadcast as the literal "broadcast".
func (r Recipients) MarshalJSON() ([]byte, error) {
	if r.broadcast {
		return json.Marshal(broadcastRecipient)
	}
	if len(r.ids) == 1 {
		return json.Marshal(r.ids[0])
	}
	return json.Marshal(r.ids)
}

// UnmarshalJSON accepts a string, the literal "broadcast", or an array.
func (r *Recipients) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == broadcastRecipient {
			*r = ToBroadcast()
		} else {
			*r = To(single)
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("a2a message: invalid recipients: %w", err)
	}
	*r = Recipients{ids: many}
	return nil
}

// DefaultTTL is applied by NewMessage when the caller does not set one.
const DefaultTTL = 60 * time.Second

// A2AMessage is the protocol envelope for one agent-to-agent request.
// ID and ConversationID are preserved bit-for-bit across a round trip;
// every Response carries CorrelationID equal to the request's ID.
type A2AMessage struct {
	// ID uniquely identifies the message.
	ID string `json:"id"`
	// From is the sending agent.
	From string `json:"from"`
	// To is the destination: one agent, a list, or broadcast.
	To Recipients `json:"to"`
	// Method names the operation requested of the recipient.
	Method string `json:"method"`
	// Payload is the request body, opaque to the router.
	Payload any `json:"payload,omitempty"`
	// Timestamp is when the message was created.
	Timestamp time.Time `json:"timestamp"`
	// TTL is how long past Timestamp the message stays deliverable.
	TTL time.Duration `json:"ttl"`
	// Priority orders the message relative to others.
	Priority Priority `json:"priority"`
	// RequiredCapabilities constrains delivery to agents advertising them.
	RequiredCapabilities []Capability `json:"required_capabilities,omitempty"`
	// RouteHint forces a routing strategy; empty selects automatically.
	RouteHint RouteStrategy `json:"route_strategy,omitempty"`
	// Coordination selects the multi-party protocol; nil means plain direct.
	Coordination *CoordinationSpec `json:"coordination,omitempty"`
	// MaxCost caps the advertised service cost of the selected agent.
	MaxCost *float64 `json:"max_cost,omitempty"`
	// MaxHops caps shortest-path length; 0 uses the engine default.
	MaxHops int `json:"max_hops,omitempty"`
	// ConversationID groups messages of one logical exchange.
	ConversationID string `json:"conversation_id,omitempty"`
}

// NewMessage creates a message with a generated ID, a current timestamp,
// normal priority and the default TTL.
func NewMessage(from string, to Recipients, method string) *A2AMessage {
	return &A2AMessage{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		Method:    method,
		Timestamp: time.Now().UTC(),
		TTL:       DefaultTTL,
		Priority:  PriorityNormal,
	}
}

// Expired reports whether the message's TTL has elapsed at now. Expired
// messages must be rejected before any delivery attempt.
func (m *A2AMessage) Expired(now time.Time) bool {
	return now.After(m.Timestamp.Add(m.TTL))
}

// Validate checks the envelope's required fields.
func (m *A2AMessage) Validate() error {
	if m.ID == "" {
		return ErrMessageMissingID
	}
	if m.From == "" {
		return ErrMessageMissingFrom
	}
	if m.To.IsZero() {
		return ErrMessageMissingTo
	}
	if m.Timestamp.IsZero() {
		return ErrMessageMissingTimestamp
	}
	if m.TTL <= 0 {
		return ErrMessageMissingTTL
	}
	if !m.Priority.IsValid() {
		return ErrMessageInvalidPriority
	}
	if m.Coordination != nil {
		return m.Coordination.Validate()
	}
	return nil
}

// CloneFor returns a copy of the message addressed to a single agent. The
// ID is preserved so responses to the clone correlate with the original.
func (m *A2AMessage) CloneFor(agentID string) *A2AMessage {
	clone := *m
	clone.To = To(agentID)
	if len(m.RequiredCapabilities) > 0 {
		clone.RequiredCapabilities = make([]Capability, len(m.RequiredCapabilities))
		copy(clone.RequiredCapabilities, m.RequiredCapabilities)
	}
	return &clone
}

// WithMethod returns a copy of the message carrying a different method.
// Used by pipeline stages that override the envelope method.
func (m *A2AMessage) WithMethod(method string) *A2AMessage {
	clone := *m
	clone.Method = method
	return &clone
}
