// Package registry tracks the live agent population and the weighted network
// graph the routing engine plans over. The registry owns the canonical agent
// cards; every card handed out is a clone, so route computation works on
// point-in-time snapshots and never races a concurrent update.
package registry

import (
	"math"
	"sync"
	"time"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/types"
	"go.uber.org/zap"
)

// Config controls entry expiry and the cleanup sweep.
type Config struct {
	// TTL is how long an entry survives without an update before the sweep
	// evicts it.
	TTL time.Duration `json:"ttl" yaml:"ttl" env:"TTL"`
	// SweepInterval is the pause between cleanup sweeps.
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	// EventBuffer is the capacity of subscriber channels.
	EventBuffer int `json:"event_buffer" yaml:"event_buffer" env:"EVENT_BUFFER"`
}

// DefaultConfig returns the standard registry settings.
func DefaultConfig() Config {
	return Config{
		TTL:           5 * time.Minute,
		SweepInterval: 30 * time.Second,
		EventBuffer:   64,
	}
}

// RoutingEntry is an agent's registry record: its card plus the derived
// figures the router ranks by.
type RoutingEntry struct {
	Card        *a2a.AgentCard `json:"card"`
	LastUpdated time.Time      `json:"last_updated"`

	// ConnectionQuality aggregates success rate, latency and uptime into
	// [0, 1].
	ConnectionQuality float64 `json:"connection_quality"`

	// Distance is the routing distance heuristic, >= 1.
	Distance int `json:"distance"`

	// Seq orders entries by registration; the resolver's first-in-order
	// selection depends on it.
	Seq uint64 `json:"-"`
}

func (e *RoutingEntry) clone() *RoutingEntry {
	out := *e
	out.Card = e.Card.Clone()
	return &out
}

// EventKind labels a registry lifecycle event.
type EventKind string

const (
	EventRegistered   EventKind = "registered"
	EventUnregistered EventKind = "unregistered"
	EventUpdated      EventKind = "updated"
	EventExpired      EventKind = "expired"
)

// Event is delivered to subscribers on registry changes. Card is a clone and
// is nil for unregistrations.
type Event struct {
	Kind    EventKind
	AgentID string
	Card    *a2a.AgentCard
	Time    time.Time
}

// MetricsUpdate is a partial update to an agent's live metrics. Nil fields
// are left untouched.
type MetricsUpdate struct {
	Load            *float64
	Status          *a2a.AgentStatus
	AvgResponseTime *time.Duration
	MinResponseTime *time.Duration
	MaxResponseTime *time.Duration
	SuccessRate     *float64
	Uptime          *float64
}

// Registry is the concurrency-safe agent directory and network graph.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*RoutingEntry

	// severed holds directed edges removed from the default full mesh.
	severed map[string]map[string]bool

	subs []chan Event

	cfg    Config
	logger *zap.Logger
	seq    uint64

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once

	now func() time.Time
}

// New creates a registry. The cleanup sweep does not run until Start is
// called. A nil logger is replaced with a nop logger.
func New(cfg Config, logger *zap.Logger) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*RoutingEntry),
		severed: make(map[string]map[string]bool),
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "registry")),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Start launches the background cleanup sweep.
func (r *Registry) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.sweepLoop()
	})
}

// Close stops the sweep and closes all subscriber channels.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		r.mu.Lock()
		for _, ch := range r.subs {
			close(ch)
		}
		r.subs = nil
		r.mu.Unlock()
	})
}

// Register adds an agent to the directory. Re-registering a live agent id is
// a state conflict; unregister it first.
func (r *Registry) Register(card *a2a.AgentCard) error {
	if card == nil {
		return types.New(types.KindValidation, "nil agent card")
	}
	if err := card.Validate(); err != nil {
		return types.New(types.KindValidation, "invalid agent card").WithCause(err)
	}

	r.mu.Lock()
	if _, exists := r.entries[card.ID]; exists {
		r.mu.Unlock()
		return types.Newf(types.KindStateConflict, "agent %q already registered", card.ID).
			WithCode(types.CodeDuplicateAgent).
			WithAgent(card.ID)
	}

	now := r.now()
	stored := card.Clone()
	if stored.Metadata.LastSeen.IsZero() {
		stored.Metadata.LastSeen = now
	}
	r.seq++
	r.entries[card.ID] = &RoutingEntry{
		Card:              stored,
		LastUpdated:       now,
		ConnectionQuality: ConnectionQuality(stored.Metadata.Metrics),
		Distance:          DistanceHeuristic(stored),
		Seq:               r.seq,
	}
	r.emitLocked(Event{Kind: EventRegistered, AgentID: card.ID, Card: stored.Clone(), Time: now})
	r.mu.Unlock()

	r.logger.Info("agent registered",
		zap.String("agent_id", card.ID),
		zap.String("agent_type", string(card.Type)),
		zap.Int("capabilities", len(card.Capabilities)),
	)
	return nil
}

// Unregister removes an agent and prunes every graph edge touching it.
// Unregistering an unknown id is a no-op.
func (r *Registry) Unregister(agentID string) {
	r.mu.Lock()
	_, exists := r.entries[agentID]
	if exists {
		delete(r.entries, agentID)
		r.pruneEdgesLocked(agentID)
		r.emitLocked(Event{Kind: EventUnregistered, AgentID: agentID, Time: r.now()})
	}
	r.mu.Unlock()

	if exists {
		r.logger.Info("agent unregistered", zap.String("agent_id", agentID))
	}
}

// UpdateMetrics applies a partial metrics update and recomputes the derived
// routing figures. Unknown agents are ignored silently: the agent may have
// just been evicted by the sweep.
func (r *Registry) UpdateMetrics(agentID string, update MetricsUpdate) {
	r.mu.Lock()
	entry, ok := r.entries[agentID]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug("metrics update for unknown agent", zap.String("agent_id", agentID))
		return
	}

	meta := &entry.Card.Metadata
	if update.Load != nil {
		meta.Load = clamp01(*update.Load)
	}
	if update.Status != nil && update.Status.IsValid() {
		meta.Status = *update.Status
	}
	if update.AvgResponseTime != nil {
		meta.Metrics.ResponseTime.Avg = *update.AvgResponseTime
	}
	if update.MinResponseTime != nil {
		meta.Metrics.ResponseTime.Min = *update.MinResponseTime
	}
	if update.MaxResponseTime != nil {
		meta.Metrics.ResponseTime.Max = *update.MaxResponseTime
	}
	if update.SuccessRate != nil {
		meta.Metrics.SuccessRate = clamp01(*update.SuccessRate)
	}
	if update.Uptime != nil {
		meta.Metrics.Uptime = math.Min(100, math.Max(0, *update.Uptime))
	}

	now := r.now()
	meta.LastSeen = now
	entry.LastUpdated = now
	entry.ConnectionQuality = ConnectionQuality(meta.Metrics)
	entry.Distance = DistanceHeuristic(entry.Card)
	r.emitLocked(Event{Kind: EventUpdated, AgentID: agentID, Card: entry.Card.Clone(), Time: now})
	r.mu.Unlock()
}

// Get returns a deep copy of the agent's routing entry.
func (r *Registry) Get(agentID string) (*RoutingEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[agentID]
	if !ok {
		return nil, false
	}
	return entry.clone(), true
}

// Snapshot returns deep copies of every routing entry.
func (r *Registry) Snapshot() []*RoutingEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*RoutingEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.clone())
	}
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Subscribe returns a channel of registry events. Events are dropped rather
// than block the registry when the subscriber falls behind. The channel is
// closed by Close.
func (r *Registry) Subscribe() <-chan Event {
	ch := make(chan Event, r.cfg.EventBuffer)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

func (r *Registry) emitLocked(ev Event) {
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (r *Registry) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep evicts entries whose last update and last-seen timestamps both
// exceed the TTL. Staleness is decided on a read snapshot so route lookups
// keep running during the scan.
func (r *Registry) sweep() {
	now := r.now()
	cutoff := now.Add(-r.cfg.TTL)

	r.mu.RLock()
	var stale []string
	for id, entry := range r.entries {
		if entry.LastUpdated.Before(cutoff) && entry.Card.Metadata.LastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return
	}

	r.mu.Lock()
	evicted := stale[:0]
	for _, id := range stale {
		entry, ok := r.entries[id]
		if !ok || !entry.LastUpdated.Before(cutoff) || !entry.Card.Metadata.LastSeen.Before(cutoff) {
			continue // refreshed between the scan and now
		}
		delete(r.entries, id)
		r.pruneEdgesLocked(id)
		r.emitLocked(Event{Kind: EventExpired, AgentID: id, Time: now})
		evicted = append(evicted, id)
	}
	r.mu.Unlock()

	for _, id := range evicted {
		r.logger.Info("agent expired", zap.String("agent_id", id), zap.Duration("ttl", r.cfg.TTL))
	}
}

func (r *Registry) pruneEdgesLocked(agentID string) {
	delete(r.severed, agentID)
	for _, row := range r.severed {
		delete(row, agentID)
	}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
