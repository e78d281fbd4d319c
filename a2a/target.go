package a2a

// TargetKind discriminates the variants of a TargetSpec.
type TargetKind string

const (
	// TargetSingle addresses one named agent.
	TargetSingle TargetKind = "single"
	// TargetMultiple addresses an explicit list of agents.
	TargetMultiple TargetKind = "multiple"
	// TargetGroup addresses agents of a given role.
	TargetGroup TargetKind = "group"
	// TargetBroadcast addresses all registered agents.
	TargetBroadcast TargetKind = "broadcast"
	// TargetConditional picks targets by predicate, with a fallback.
	TargetConditional TargetKind = "conditional"
)

// ExecMode orders deliveries to a multiple-target set.
type ExecMode string

const (
	// ExecParallel delivers to all targets concurrently.
	ExecParallel ExecMode = "parallel"
	// ExecSequential delivers to targets one at a time, in order.
	ExecSequential ExecMode = "sequential"
)

// SelectionStrategy picks members from a matching group.
type SelectionStrategy string

const (
	// SelectRandom picks group members at random.
	SelectRandom SelectionStrategy = "random"
	// SelectFirst picks group members in registration order.
	SelectFirst SelectionStrategy = "first"
	// SelectLeastLoaded picks the members with the lowest load.
	SelectLeastLoaded SelectionStrategy = "least_loaded"
)

// CardPredicate is an arbitrary condition over an agent card, evaluated
// against registry snapshots.
type CardPredicate func(*AgentCard) bool

// TargetCondition is one branch of a conditional target: agents whose card
// satisfies Match are the branch's implied targets.
type TargetCondition struct {
	// Name labels the condition for logging.
	Name string
	// Match decides whether an agent satisfies the condition.
	Match CardPredicate
}

// TargetSpec describes where a message should go, abstractly. The Kind field
// discriminates which of the remaining fields are meaningful; Validate
// enforces the per-kind requirements so the resolver can match exhaustively.
type TargetSpec struct {
	Kind TargetKind `json:"kind"`

	// Agent is the destination for TargetSingle.
	Agent string `json:"agent,omitempty"`

	// Agents and Mode describe a TargetMultiple destination.
	Agents []string `json:"agents,omitempty"`
	Mode   ExecMode `json:"mode,omitempty"`

	// Role, MaxAgents and Selection describe a TargetGroup destination.
	Role      string            `json:"role,omitempty"`
	MaxAgents int               `json:"max_agents,omitempty"`
	Selection SelectionStrategy `json:"selection,omitempty"`

	// Filter and ExcludeSource refine a TargetBroadcast destination.
	Filter        CardPredicate `json:"-"`
	ExcludeSource bool          `json:"exclude_source,omitempty"`

	// Conditions and Fallback describe a TargetConditional destination.
	Conditions []TargetCondition `json:"-"`
	Fallback   *TargetSpec       `json:"fallback,omitempty"`
}

// SingleTarget addresses one named agent.
func SingleTarget(agentID string) TargetSpec {
	return TargetSpec{Kind: TargetSingle, Agent: agentID}
}

// MultipleTargets addresses an explicit agent list with the given mode.
func MultipleTargets(mode ExecMode, agentIDs ...string) TargetSpec {
	ids := make([]string, len(agentIDs))
	copy(ids, agentIDs)
	return TargetSpec{Kind: TargetMultiple, Agents: ids, Mode: mode}
}

// GroupTarget addresses up to maxAgents agents of the given role, chosen by
// the selection strategy. maxAgents <= 0 means unlimited.
func GroupTarget(role string, maxAgents int, selection SelectionStrategy) TargetSpec {
	return TargetSpec{Kind: TargetGroup, Role: role, MaxAgents: maxAgents, Selection: selection}
}

// BroadcastTarget addresses all registered agents passing the optional
// filter, excluding the sender when excludeSource is set.
func BroadcastTarget(filter CardPredicate, excludeSource bool) TargetSpec {
	return TargetSpec{Kind: TargetBroadcast, Filter: filter, ExcludeSource: excludeSource}
}

// ConditionalTarget evaluates conditions in order and resolves to the agents
// satisfying the first condition any agent satisfies, else to the fallback.
func ConditionalTarget(fallback TargetSpec, conditions ...TargetCondition) TargetSpec {
	fb := fallback
	return TargetSpec{Kind: TargetConditional, Conditions: conditions, Fallback: &fb}
}

// Validate checks the per-kind required fields and applies defaults: an
// unset Mode becomes parallel, an unset Selection becomes first.
func (t *TargetSpec) Validate() error {
	switch t.Kind {
	case TargetSingle:
		if t.Agent == "" {
			return ErrTargetMissingAgent
		}
	case TargetMultiple:
		if len(t.Agents) == 0 {
			return ErrTargetMissingAgents
		}
		if t.Mode == "" {
			t.Mode = ExecParallel
		}
		if t.Mode != ExecParallel && t.Mode != ExecSequential {
			return ErrTargetUnknownKind
		}
	case TargetGroup:
		if t.Role == "" {
			return ErrTargetMissingRole
		}
		if t.Selection == "" {
			t.Selection = SelectFirst
		}
		switch t.Selection {
		case SelectRandom, SelectFirst, SelectLeastLoaded:
		default:
			return ErrTargetInvalidSelection
		}
	case TargetBroadcast:
		// Filter and ExcludeSource are both optional.
	case TargetConditional:
		if t.Fallback == nil {
			return ErrTargetMissingFallback
		}
		for _, cond := range t.Conditions {
			if cond.Match == nil {
				return ErrTargetNilCondition
			}
		}
		return t.Fallback.Validate()
	default:
		return ErrTargetUnknownKind
	}
	return nil
}
