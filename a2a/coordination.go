package a2a

import (
	"fmt"
	"time"

	"github.com/BaSui01/agentroute/retry"
)

// CoordinationMode selects how the orchestrator executes a message across
// its resolved targets.
type CoordinationMode string

const (
	// ModeDirect delivers to a single target and waits for its response.
	ModeDirect CoordinationMode = "direct"
	// ModeBroadcast fans out to every target and aggregates the responses.
	ModeBroadcast CoordinationMode = "broadcast"
	// ModeConsensus collects votes from the targets and decides the outcome.
	ModeConsensus CoordinationMode = "consensus"
	// ModePipeline threads the payload through ordered stages.
	ModePipeline CoordinationMode = "pipeline"
)

// AggregationPolicy decides how broadcast responses combine into one outcome.
type AggregationPolicy string

const (
	// AggregateAll succeeds only when every target succeeds.
	AggregateAll AggregationPolicy = "all"
	// AggregateMajority succeeds when more than half of the targets succeed.
	AggregateMajority AggregationPolicy = "majority"
	// AggregateFirst returns the first successful response and cancels the rest.
	AggregateFirst AggregationPolicy = "first"
	// AggregateAny succeeds as soon as any target succeeds.
	AggregateAny AggregationPolicy = "any"
)

// ConsensusType decides how many yes votes reach agreement.
type ConsensusType string

const (
	// ConsensusUnanimous requires every participant to vote yes.
	ConsensusUnanimous ConsensusType = "unanimous"
	// ConsensusMajority requires more than half of the participants to vote yes.
	ConsensusMajority ConsensusType = "majority"
)

// FailureStrategy decides how a pipeline reacts when a stage fails.
type FailureStrategy string

const (
	// FailAbort stops the pipeline at the failing stage.
	FailAbort FailureStrategy = "abort"
	// FailSkip drops the failing stage's output and continues with its input.
	FailSkip FailureStrategy = "skip"
	// FailRetry re-runs the failing stage under the pipeline's retry policy.
	FailRetry FailureStrategy = "retry"
)

// DirectSpec configures direct coordination.
type DirectSpec struct {
	// Timeout bounds the wait for the target's response. Zero means the
	// dispatcher default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// RetryPolicy overrides the dispatcher's retry policy for this message.
	RetryPolicy *retry.Policy `json:"retry_policy,omitempty"`

	// AckRequired demands an explicit acknowledgement in the response.
	AckRequired bool `json:"ack_required,omitempty"`
}

// BroadcastSpec configures broadcast coordination.
type BroadcastSpec struct {
	Aggregation AggregationPolicy `json:"aggregation"`

	// Timeout bounds the whole fan-out. Zero means the dispatcher default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// PartialSuccess reports per-target outcomes instead of failing the
	// broadcast outright when some targets fail.
	PartialSuccess bool `json:"partial_success,omitempty"`
}

// ConsensusSpec configures consensus coordination.
type ConsensusSpec struct {
	Type ConsensusType `json:"type"`

	// VotingTimeout bounds vote collection. Votes arriving after it are
	// discarded. Zero means the dispatcher default.
	VotingTimeout time.Duration `json:"voting_timeout,omitempty"`

	// MinParticipants is the quorum below which the round never starts.
	// Zero means 1.
	MinParticipants int `json:"min_participants,omitempty"`
}

// Stage is one step of a pipeline.
type Stage struct {
	Name   string     `json:"name"`
	Target TargetSpec `json:"target"`

	// Method overrides the message method for this stage. Empty keeps the
	// message's own method.
	Method string `json:"method,omitempty"`

	// InputTransform rewrites the stage input before delivery.
	InputTransform func(any) any `json:"-"`
	// OutputTransform rewrites the stage output before it feeds the next stage.
	OutputTransform func(any) any `json:"-"`
}

// PipelineSpec configures pipeline coordination.
type PipelineSpec struct {
	Stages []Stage `json:"stages"`

	// OnFailure decides how a stage failure propagates. Empty means FailAbort.
	OnFailure FailureStrategy `json:"on_failure,omitempty"`

	// StatePassthrough feeds each stage the accumulated outputs of all prior
	// stages instead of only the previous stage's output.
	StatePassthrough bool `json:"state_passthrough,omitempty"`

	// Retry is the policy applied by FailRetry. Nil means the dispatcher
	// default.
	Retry *retry.Policy `json:"retry,omitempty"`
}

// CoordinationSpec is a tagged union over the four coordination modes. Exactly
// the body matching Mode must be set.
type CoordinationSpec struct {
	Mode CoordinationMode `json:"mode"`

	Direct    *DirectSpec    `json:"direct,omitempty"`
	Broadcast *BroadcastSpec `json:"broadcast,omitempty"`
	Consensus *ConsensusSpec `json:"consensus,omitempty"`
	Pipeline  *PipelineSpec  `json:"pipeline,omitempty"`
}

// DirectCoordination builds a direct spec.
func DirectCoordination(timeout time.Duration) *CoordinationSpec {
	return &CoordinationSpec{
		Mode:   ModeDirect,
		Direct: &DirectSpec{Timeout: timeout},
	}
}

// BroadcastCoordination builds a broadcast spec.
func BroadcastCoordination(aggregation AggregationPolicy, timeout time.Duration) *CoordinationSpec {
	return &CoordinationSpec{
		Mode:      ModeBroadcast,
		Broadcast: &BroadcastSpec{Aggregation: aggregation, Timeout: timeout},
	}
}

// ConsensusCoordination builds a consensus spec.
func ConsensusCoordination(kind ConsensusType, votingTimeout time.Duration, minParticipants int) *CoordinationSpec {
	return &CoordinationSpec{
		Mode: ModeConsensus,
		Consensus: &ConsensusSpec{
			Type:            kind,
			VotingTimeout:   votingTimeout,
			MinParticipants: minParticipants,
		},
	}
}

// PipelineCoordination builds a pipeline spec from ordered stages.
func PipelineCoordination(stages ...Stage) *CoordinationSpec {
	return &CoordinationSpec{
		Mode:     ModePipeline,
		Pipeline: &PipelineSpec{Stages: stages},
	}
}

// Validate checks the spec, applying defaults for optional enum fields.
func (s *CoordinationSpec) Validate() error {
	switch s.Mode {
	case ModeDirect:
		if s.Direct == nil {
			return fmt.Errorf("%w: direct", ErrCoordinationMissingSpec)
		}
	case ModeBroadcast:
		if s.Broadcast == nil {
			return fmt.Errorf("%w: broadcast", ErrCoordinationMissingSpec)
		}
		switch s.Broadcast.Aggregation {
		case AggregateAll, AggregateMajority, AggregateFirst, AggregateAny:
		case "":
			s.Broadcast.Aggregation = AggregateAll
		default:
			return fmt.Errorf("%w: %q", ErrCoordinationInvalidAggregation, s.Broadcast.Aggregation)
		}
	case ModeConsensus:
		if s.Consensus == nil {
			return fmt.Errorf("%w: consensus", ErrCoordinationMissingSpec)
		}
		switch s.Consensus.Type {
		case ConsensusUnanimous, ConsensusMajority:
		case "":
			s.Consensus.Type = ConsensusMajority
		default:
			return fmt.Errorf("%w: %q", ErrCoordinationInvalidConsensus, s.Consensus.Type)
		}
		if s.Consensus.MinParticipants < 0 {
			return fmt.Errorf("%w: negative min_participants", ErrCoordinationInvalidConsensus)
		}
	case ModePipeline:
		if s.Pipeline == nil {
			return fmt.Errorf("%w: pipeline", ErrCoordinationMissingSpec)
		}
		if len(s.Pipeline.Stages) == 0 {
			return ErrCoordinationNoStages
		}
		for i := range s.Pipeline.Stages {
			if err := s.Pipeline.Stages[i].Target.Validate(); err != nil {
				return fmt.Errorf("stage %d (%s): %w", i, s.Pipeline.Stages[i].Name, err)
			}
		}
		switch s.Pipeline.OnFailure {
		case FailAbort, FailSkip, FailRetry:
		case "":
			s.Pipeline.OnFailure = FailAbort
		default:
			return fmt.Errorf("%w: %q", ErrCoordinationInvalidFailure, s.Pipeline.OnFailure)
		}
	default:
		return fmt.Errorf("%w: %q", ErrCoordinationUnknownMode, s.Mode)
	}
	return nil
}
