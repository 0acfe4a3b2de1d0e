package entity

import "time"

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
)

type TranscriptRole string

const (
	TranscriptRolePilot TranscriptRole = "pilot"
	TranscriptRoleAgent TranscriptRole = "agent"
)

type AgentAction string

const (
	AgentActionSearch   AgentAction = "search"
	AgentActionFinalize AgentAction = "finalize"
)

// Service agent ids as shown on the dashboard.
const (
	AgentCarRental   = "car_rental"
	AgentRefueling   = "refueling"
	AgentCatering    = "catering"
	AgentWine        = "wine"
	AgentReservation = "reservation"
	AgentUrgent      = "urgent"
)

const UnknownCallerName = "Unknown Caller"

type Customer struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	PilotName   string `json:"pilotName"`
	PlaneNumber string `json:"planeNumber"`
}

type TranscriptEntry struct {
	Role      TranscriptRole `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

// TriggeredAgent is one service request in flight (search) or confirmed (finalize).
type TriggeredAgent struct {
	Id      string      `json:"id"`
	Details string      `json:"details"`
	Action  AgentAction `json:"action"`
}

type Order struct {
	Id              string            `json:"id"`
	CustomerId      string            `json:"customerId"`
	Customer        Customer          `json:"customer"`
	AircraftType    string            `json:"aircraftType"`
	Status          OrderStatus       `json:"status"`
	ArrivalTime     time.Time         `json:"arrivalTime"`
	Passengers      int               `json:"passengers"`
	IsIdentifying   bool              `json:"isIdentifying"`
	TriggeredAgents []TriggeredAgent  `json:"triggeredAgents"`
	Transcript      []TranscriptEntry `json:"transcript"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy that is safe to hand out of the store.
func (o *Order) Clone() Order {
	c := *o
	c.TriggeredAgents = CloneAgents(o.TriggeredAgents)
	c.Transcript = make([]TranscriptEntry, len(o.Transcript))
	copy(c.Transcript, o.Transcript)
	return c
}

func (o *Order) FindAgent(id string) (int, bool) {
	for i, a := range o.TriggeredAgents {
		if a.Id == id {
			return i, true
		}
	}
	return -1, false
}

func (o *Order) LastTranscriptEntry() (TranscriptEntry, bool) {
	if len(o.Transcript) == 0 {
		return TranscriptEntry{}, false
	}
	return o.Transcript[len(o.Transcript)-1], true
}

// RecentTranscript returns up to n entries preceding index end (exclusive).
func (o *Order) RecentTranscript(end, n int) []TranscriptEntry {
	if end > len(o.Transcript) {
		end = len(o.Transcript)
	}
	start := end - n
	if start < 0 {
		start = 0
	}
	out := make([]TranscriptEntry, end-start)
	copy(out, o.Transcript[start:end])
	return out
}

func CloneAgents(agents []TriggeredAgent) []TriggeredAgent {
	out := make([]TriggeredAgent, len(agents))
	copy(out, agents)
	return out
}
