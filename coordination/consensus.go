package coordination

import (
	"context"

	"github.com/BaSui01/agentroute/a2a"
	"github.com/BaSui01/agentroute/types"
	"go.uber.org/zap"
)

// dispatchConsensus broadcasts a vote request and decides the outcome once
// enough votes are in. Votes arriving after the voting timeout are discarded
// with the cancelled fan-out.
func (o *Orchestrator) dispatchConsensus(ctx context.Context, msg *a2a.A2AMessage, spec *a2a.ConsensusSpec) *a2a.Response {
	target := targetFromMessage(msg)
	resolution, err := o.resolver.Resolve(&target, msg.From)
	if err != nil {
		return a2a.ErrorResponse(msg, asTyped(err))
	}

	quorum := spec.MinParticipants
	if quorum < 1 {
		quorum = 1
	}
	n := len(resolution.Agents)
	if n < quorum {
		return a2a.ErrorResponse(msg, types.Newf(types.KindInsufficientParticipants, "consensus needs %d participants, have %d", quorum, n).
			WithCode(types.CodeQuorumTooSmall))
	}

	timeout := o.timeoutOr(spec.VotingTimeout)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := o.fanOut(ctx, msg, resolution.Agents, timeout)

	// needed is the yes-vote count that settles the round early.
	needed := n
	if spec.Type == a2a.ConsensusMajority {
		needed = n/2 + 1
	}

	outcomes := make([]a2a.TargetOutcome, 0, n)
	yes := 0
	for i := 0; i < n; i++ {
		res := <-results
		outcomes = append(outcomes, outcome(res))
		if res.err == nil && res.resp.Approved() {
			yes++
		} else if spec.Type == a2a.ConsensusUnanimous {
			// One dissent or failure already sinks a unanimous round.
			break
		}
		if yes >= needed {
			break
		}
	}

	o.logger.Debug("consensus round finished",
		zap.String("message_id", msg.ID),
		zap.String("type", string(spec.Type)),
		zap.Int("yes", yes),
		zap.Int("participants", n),
	)

	result := map[string]any{
		"yes":          yes,
		"participants": n,
		"type":         string(spec.Type),
	}
	if yes >= needed {
		out := a2a.SuccessResponse(msg, result)
		out.Targets = outcomes
		return out
	}

	out := a2a.ErrorResponse(msg, types.Newf(types.KindTimeout, "consensus not reached: %d of %d voted yes, needed %d", yes, n, needed).
		WithCode(types.CodeConsensusFailed))
	out.Targets = outcomes
	out.Result = result
	return out
}
