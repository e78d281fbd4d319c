package a2a

import (
	"time"
)

// AgentType describes the role an agent plays in the network.
type AgentType string

const (
	// TypeCoordinator marks agents that orchestrate other agents.
	TypeCoordinator AgentType = "coordinator"
	// TypeWorker marks agents that execute tasks.
	TypeWorker AgentType = "worker"
)

// AgentStatus represents the live availability of an agent.
type AgentStatus string

const (
	// StatusIdle indicates the agent is available for work.
	StatusIdle AgentStatus = "idle"
	// StatusBusy indicates the agent is processing but accepts more work.
	StatusBusy AgentStatus = "busy"
	// StatusOverloaded indicates the agent should not receive new work.
	StatusOverloaded AgentStatus = "overloaded"
	// StatusOffline indicates the agent is unreachable.
	StatusOffline AgentStatus = "offline"
)

// IsValid reports whether the status is a known value.
func (s AgentStatus) IsValid() bool {
	switch s {
	case StatusIdle, StatusBusy, StatusOverloaded, StatusOffline:
		return true
	default:
		return false
	}
}

// Capability is a named, versioned skill an agent advertises.
type Capability struct {
	// Name is the capability identifier, e.g. "code_review".
	Name string `json:"name"`
	// Version is the semantic version of the capability, e.g. "1.2.0".
	Version string `json:"version"`
}

// Service describes one invocable operation an agent advertises with its cost.
type Service struct {
	// Name is the service identifier.
	Name string `json:"name"`
	// Method is the protocol method the service handles.
	Method string `json:"method"`
	// Cost is the advertised cost of one invocation, in caller-defined units.
	Cost float64 `json:"cost"`
}

// ResponseTimeStats aggregates observed response latencies for an agent.
type ResponseTimeStats struct {
	Avg time.Duration `json:"avg"`
	Min time.Duration `json:"min,omitempty"`
	Max time.Duration `json:"max,omitempty"`
}

// AgentMetrics holds the live performance figures reported for an agent.
type AgentMetrics struct {
	// ResponseTime aggregates delivery latencies.
	ResponseTime ResponseTimeStats `json:"response_time"`
	// SuccessRate is the fraction of successful deliveries, in [0, 1].
	SuccessRate float64 `json:"success_rate"`
	// Uptime is the agent's availability percentage, in [0, 100].
	Uptime float64 `json:"uptime"`
}

// AgentMetadata is the mutable live state attached to an agent card.
type AgentMetadata struct {
	// Load is the agent's current utilization, in [0, 1].
	Load float64 `json:"load"`
	// Status is the agent's availability state.
	Status AgentStatus `json:"status"`
	// LastSeen is when the agent last reported in.
	LastSeen time.Time `json:"last_seen"`
	// Metrics holds live performance figures.
	Metrics AgentMetrics `json:"metrics"`
}

// AgentCard is the public descriptor of one agent. The registry owns the
// canonical copy; everything handed out by the registry is a clone.
type AgentCard struct {
	// ID is the unique identifier of the agent.
	ID string `json:"id"`
	// Type is the agent's role in the network.
	Type AgentType `json:"type"`
	// Capabilities lists the versioned skills the agent advertises.
	Capabilities []Capability `json:"capabilities,omitempty"`
	// Services lists the invocable operations with their costs.
	Services []Service `json:"services,omitempty"`
	// Metadata is the agent's live state.
	Metadata AgentMetadata `json:"metadata"`
}

// NewAgentCard creates a card with the given identity, idle status and a
// fresh LastSeen timestamp.
func NewAgentCard(id string, agentType AgentType) *AgentCard {
	return &AgentCard{
		ID:   id,
		Type: agentType,
		Metadata: AgentMetadata{
			Status:   StatusIdle,
			LastSeen: time.Now().UTC(),
			Metrics: AgentMetrics{
				SuccessRate: 1.0,
				Uptime:      100.0,
			},
		},
	}
}

// AddCapability appends a versioned capability to the card.
func (c *AgentCard) AddCapability(name, version string) *AgentCard {
	c.Capabilities = append(c.Capabilities, Capability{Name: name, Version: version})
	return c
}

// AddService appends a service advertisement to the card.
func (c *AgentCard) AddService(name, method string, cost float64) *AgentCard {
	c.Services = append(c.Services, Service{Name: name, Method: method, Cost: cost})
	return c
}

// WithLoad sets the card's load.
func (c *AgentCard) WithLoad(load float64) *AgentCard {
	c.Metadata.Load = load
	return c
}

// WithStatus sets the card's status.
func (c *AgentCard) WithStatus(status AgentStatus) *AgentCard {
	c.Metadata.Status = status
	return c
}

// HasCapability reports whether the card advertises the named capability,
// regardless of version.
func (c *AgentCard) HasCapability(name string) bool {
	for _, cap := range c.Capabilities {
		if cap.Name == name {
			return true
		}
	}
	return false
}

// FindCapability returns the advertised capability with the given name.
func (c *AgentCard) FindCapability(name string) (Capability, bool) {
	for _, cap := range c.Capabilities {
		if cap.Name == name {
			return cap, true
		}
	}
	return Capability{}, false
}

// ServiceCost returns the advertised cost of the service handling method.
// An empty method asks for the agent's minimum advertised cost across all
// services; a method with no matching service reports false.
func (c *AgentCard) ServiceCost(method string) (float64, bool) {
	if method == "" {
		return c.minServiceCost()
	}
	for _, svc := range c.Services {
		if svc.Method == method {
			return svc.Cost, true
		}
	}
	return 0, false
}

func (c *AgentCard) minServiceCost() (float64, bool) {
	if len(c.Services) == 0 {
		return 0, false
	}
	min := c.Services[0].Cost
	for _, svc := range c.Services[1:] {
		if svc.Cost < min {
			min = svc.Cost
		}
	}
	return min, true
}

// Available reports whether the agent can currently receive deliveries.
func (c *AgentCard) Available() bool {
	return c.Metadata.Status != StatusOffline
}

// Clone returns a deep copy of the card.
func (c *AgentCard) Clone() *AgentCard {
	if c == nil {
		return nil
	}
	clone := *c
	if len(c.Capabilities) > 0 {
		clone.Capabilities = make([]Capability, len(c.Capabilities))
		copy(clone.Capabilities, c.Capabilities)
	}
	if len(c.Services) > 0 {
		clone.Services = make([]Service, len(c.Services))
		copy(clone.Services, c.Services)
	}
	return &clone
}

// Validate checks that the card has the required identity fields and that
// live metadata is within range.
func (c *AgentCard) Validate() error {
	if c.ID == "" {
		return ErrCardMissingID
	}
	if c.Type == "" {
		return ErrCardMissingType
	}
	if c.Metadata.Load < 0 || c.Metadata.Load > 1 {
		return ErrCardInvalidLoad
	}
	if !c.Metadata.Status.IsValid() {
		return ErrCardInvalidStatus
	}
	return nil
}
