package service

import (
	"fmt"
	"slices"

	"fbo-callrelay-be/internal/entity"
	"fbo-callrelay-be/pkg/classifier"
)

var agentIDs = map[classifier.ServiceType]string{
	classifier.ServiceTransport: entity.AgentCarRental,
}

var dashboardAgents = map[string]bool{
	entity.AgentCarRental:   true,
	entity.AgentRefueling:   true,
	entity.AgentCatering:    true,
	entity.AgentWine:        true,
	entity.AgentReservation: true,
	entity.AgentUrgent:      true,
}

// AgentID maps a classifier service type onto its dashboard agent id. The
// second result is false for types the dashboard has no agent for.
func AgentID(t classifier.ServiceType) (string, bool) {
	id, ok := agentIDs[t]
	if !ok {
		id = string(t)
	}
	return id, dashboardAgents[id]
}

type FoldResult struct {
	Changed bool
	// Stop ends the batch. Set after an urgent intent.
	Stop    bool
	AgentID string
}

// FoldIntent applies one intent to the order's triggered agents.
//
//   - urgent replaces every agent with a single urgent/finalize entry
//   - while urgent is present, other intents are ignored
//   - cancel removes the agent if present
//   - search adds the agent only if absent
//   - finalize upgrades an existing agent or adds a finalized one
func FoldIntent(order *entity.Order, intent classifier.Intent) FoldResult {
	agentID, ok := AgentID(intent.Type)
	if !ok {
		return FoldResult{}
	}

	if agentID == entity.AgentUrgent {
		details := intent.Details
		if details == "" {
			details = "Emergency reported"
		}
		order.TriggeredAgents = []entity.TriggeredAgent{{
			Id:      entity.AgentUrgent,
			Details: details,
			Action:  entity.AgentActionFinalize,
		}}
		return FoldResult{Changed: true, Stop: true, AgentID: agentID}
	}

	if _, urgent := order.FindAgent(entity.AgentUrgent); urgent {
		return FoldResult{AgentID: agentID}
	}

	idx, exists := order.FindAgent(agentID)
	switch intent.Action {
	case classifier.ActionCancel:
		if !exists {
			return FoldResult{AgentID: agentID}
		}
		order.TriggeredAgents = slices.Delete(order.TriggeredAgents, idx, idx+1)

	case classifier.ActionSearch:
		if exists {
			return FoldResult{AgentID: agentID}
		}
		details := intent.Details
		if details == "" {
			details = fmt.Sprintf("Listening for %s...", intent.Type)
		}
		order.TriggeredAgents = append(order.TriggeredAgents, entity.TriggeredAgent{
			Id:      agentID,
			Details: details,
			Action:  entity.AgentActionSearch,
		})

	case classifier.ActionFinalize:
		if exists {
			agent := &order.TriggeredAgents[idx]
			agent.Action = entity.AgentActionFinalize
			if intent.Details != "" {
				agent.Details = intent.Details
			}
			break
		}
		details := intent.Details
		if details == "" {
			details = fmt.Sprintf("%s confirmed", intent.Type)
		}
		order.TriggeredAgents = append(order.TriggeredAgents, entity.TriggeredAgent{
			Id:      agentID,
			Details: details,
			Action:  entity.AgentActionFinalize,
		})

	default:
		return FoldResult{AgentID: agentID}
	}

	return FoldResult{Changed: true, AgentID: agentID}
}
