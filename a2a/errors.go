package a2a

import "errors"

// Agent card validation errors.
var (
	// ErrCardMissingID indicates the agent card lacks an ID.
	ErrCardMissingID = errors.New("agent card: missing id")
	// ErrCardMissingType indicates the agent card lacks an agent type.
	ErrCardMissingType = errors.New("agent card: missing type")
	// ErrCardInvalidLoad indicates the card's load is outside [0, 1].
	ErrCardInvalidLoad = errors.New("agent card: load out of range")
	// ErrCardInvalidStatus indicates the card carries an unknown status.
	ErrCardInvalidStatus = errors.New("agent card: invalid status")
)

// A2A message validation errors.
var (
	// ErrMessageMissingID indicates the message lacks an ID.
	ErrMessageMissingID = errors.New("a2a message: missing id")
	// ErrMessageMissingFrom indicates the message lacks a sender.
	ErrMessageMissingFrom = errors.New("a2a message: missing from")
	// ErrMessageMissingTo indicates the message lacks recipients.
	ErrMessageMissingTo = errors.New("a2a message: missing to")
	// ErrMessageMissingTimestamp indicates the message lacks a timestamp.
	ErrMessageMissingTimestamp = errors.New("a2a message: missing timestamp")
	// ErrMessageMissingTTL indicates the message lacks a positive TTL.
	ErrMessageMissingTTL = errors.New("a2a message: missing ttl")
	// ErrMessageInvalidPriority indicates an unknown priority value.
	ErrMessageInvalidPriority = errors.New("a2a message: invalid priority")
)

// Target and coordination spec validation errors.
var (
	// ErrTargetUnknownKind indicates an unrecognized target kind.
	ErrTargetUnknownKind = errors.New("target spec: unknown kind")
	// ErrTargetMissingAgent indicates a single target without an agent id.
	ErrTargetMissingAgent = errors.New("target spec: single target missing agent id")
	// ErrTargetMissingAgents indicates a multiple target with no agent ids.
	ErrTargetMissingAgents = errors.New("target spec: multiple target missing agent ids")
	// ErrTargetMissingRole indicates a group target without a role.
	ErrTargetMissingRole = errors.New("target spec: group target missing role")
	// ErrTargetInvalidSelection indicates an unknown group selection strategy.
	ErrTargetInvalidSelection = errors.New("target spec: invalid selection strategy")
	// ErrTargetMissingFallback indicates a conditional target without a fallback.
	ErrTargetMissingFallback = errors.New("target spec: conditional target missing fallback")
	// ErrTargetNilCondition indicates a conditional target with a nil predicate.
	ErrTargetNilCondition = errors.New("target spec: nil condition predicate")

	// ErrCoordinationUnknownMode indicates an unrecognized coordination mode.
	ErrCoordinationUnknownMode = errors.New("coordination spec: unknown mode")
	// ErrCoordinationMissingSpec indicates the mode's spec body is nil.
	ErrCoordinationMissingSpec = errors.New("coordination spec: missing mode body")
	// ErrCoordinationInvalidAggregation indicates an unknown aggregation policy.
	ErrCoordinationInvalidAggregation = errors.New("coordination spec: invalid aggregation")
	// ErrCoordinationInvalidConsensus indicates an unknown consensus type.
	ErrCoordinationInvalidConsensus = errors.New("coordination spec: invalid consensus type")
	// ErrCoordinationNoStages indicates a pipeline with no stages.
	ErrCoordinationNoStages = errors.New("coordination spec: pipeline has no stages")
	// ErrCoordinationInvalidFailure indicates an unknown pipeline failure strategy.
	ErrCoordinationInvalidFailure = errors.New("coordination spec: invalid failure strategy")
)
