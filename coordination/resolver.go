// Package coordination executes messages across their resolved targets: it
// turns abstract target specs into concrete agent lists and runs the four
// coordination modes with their failure semantics.
package coordination

import (
	"math/rand"
	"sort"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/registry"
	"github.com/BaSui01/agentroute/types"
	"go.uber.org/zap"
)

// Resolution is a resolved target: the concrete agent ids and how deliveries
// to them should be sequenced.
type Resolution struct {
	Agents []string
	Mode   a2a.ExecMode
}

// Resolver maps target specs to agent ids against live registry state.
type Resolver struct {
	reg    *registry.Registry
	logger *zap.Logger
}

// NewResolver creates a resolver over the registry.
func NewResolver(reg *registry.Registry, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		reg:    reg,
		logger: logger.With(zap.String("component", "resolver")),
	}
}

// Resolve returns the agents a spec addresses right now. The from id is
// used by broadcast targets that exclude the sender. Resolution is a
// snapshot: agents may come or go before delivery, which the orchestrator
// handles per target.
func (r *Resolver) Resolve(spec *a2a.TargetSpec, from string) (*Resolution, error) {
	if err := spec.Validate(); err != nil {
		return nil, types.New(types.KindValidation, "invalid target spec").
			WithCode(types.CodeInvalidTarget).
			WithCause(err)
	}

	switch spec.Kind {
	case a2a.TargetSingle:
		return r.resolveSingle(spec.Agent)
	case a2a.TargetMultiple:
		return &Resolution{Agents: append([]string(nil), spec.Agents...), Mode: spec.Mode}, nil
	case a2a.TargetGroup:
		return r.resolveGroup(spec)
	case a2a.TargetBroadcast:
		return r.resolveBroadcast(spec, from)
	case a2a.TargetConditional:
		return r.resolveConditional(spec, from)
	default:
		return nil, types.Newf(types.KindValidation, "unknown target kind %q", spec.Kind).
			WithCode(types.CodeInvalidTarget)
	}
}

func (r *Resolver) resolveSingle(agentID string) (*Resolution, error) {
	entry, ok := r.reg.Get(agentID)
	if !ok {
		return nil, types.Newf(types.KindAgentUnavailable, "agent %q not registered", agentID).
			WithCode(types.CodeAgentNotFound).
			WithAgent(agentID)
	}
	if !entry.Card.Available() {
		return nil, types.Newf(types.KindAgentUnavailable, "agent %q is offline", agentID).
			WithCode(types.CodeAgentOffline).
			WithAgent(agentID)
	}
	return &Resolution{Agents: []string{agentID}, Mode: a2a.ExecParallel}, nil
}

func (r *Resolver) resolveGroup(spec *a2a.TargetSpec) (*Resolution, error) {
	members := r.entries(func(entry *registry.RoutingEntry) bool {
		return string(entry.Card.Type) == spec.Role
	}, "")
	if len(members) == 0 {
		return nil, types.Newf(types.KindAgentUnavailable, "no agents with role %q", spec.Role).
			WithCode(types.CodeAgentNotFound)
	}

	switch spec.Selection {
	case a2a.SelectFirst:
		sort.Slice(members, func(i, j int) bool { return members[i].Seq < members[j].Seq })
	case a2a.SelectLeastLoaded:
		sort.Slice(members, func(i, j int) bool {
			return members[i].Card.Metadata.Load < members[j].Card.Metadata.Load
		})
	case a2a.SelectRandom:
		rand.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
	}

	if spec.MaxAgents > 0 && len(members) > spec.MaxAgents {
		members = members[:spec.MaxAgents]
	}
	return &Resolution{Agents: ids(members), Mode: a2a.ExecParallel}, nil
}

func (r *Resolver) resolveBroadcast(spec *a2a.TargetSpec, from string) (*Resolution, error) {
	exclude := ""
	if spec.ExcludeSource {
		exclude = from
	}
	members := r.entries(func(entry *registry.RoutingEntry) bool {
		return spec.Filter == nil || spec.Filter(entry.Card)
	}, exclude)
	if len(members) == 0 {
		return nil, types.New(types.KindAgentUnavailable, "no agents match the broadcast filter").
			WithCode(types.CodeAgentNotFound)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Seq < members[j].Seq })
	return &Resolution{Agents: ids(members), Mode: a2a.ExecParallel}, nil
}

// resolveConditional evaluates conditions in order and resolves to the
// agents satisfying the first condition any agent satisfies, else to the
// fallback.
func (r *Resolver) resolveConditional(spec *a2a.TargetSpec, from string) (*Resolution, error) {
	for _, cond := range spec.Conditions {
		members := r.entries(func(entry *registry.RoutingEntry) bool {
			return cond.Match(entry.Card)
		}, "")
		if len(members) > 0 {
			r.logger.Debug("conditional target matched",
				zap.String("condition", cond.Name),
				zap.Int("agents", len(members)),
			)
			sort.Slice(members, func(i, j int) bool { return members[i].Seq < members[j].Seq })
			return &Resolution{Agents: ids(members), Mode: a2a.ExecParallel}, nil
		}
	}
	return r.Resolve(spec.Fallback, from)
}

// entries returns available registry entries passing the filter, minus the
// excluded id.
func (r *Resolver) entries(match func(*registry.RoutingEntry) bool, exclude string) []*registry.RoutingEntry {
	all := r.reg.Snapshot()
	out := all[:0]
	for _, entry := range all {
		if entry.Card.ID == exclude || !entry.Card.Available() {
			continue
		}
		if match(entry) {
			out = append(out, entry)
		}
	}
	return out
}

func ids(entries []*registry.RoutingEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Card.ID
	}
	return out
}
