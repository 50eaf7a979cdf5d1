package coup

import "time"

// EventType names a committed state change.
type EventType string

const (
	EventPlayerJoined     EventType = "player_joined"
	EventGameStarted      EventType = "game_started"
	EventActionSubmitted  EventType = "action_submitted"
	EventActionBlocked    EventType = "action_blocked"
	EventActionChallenged EventType = "action_challenged"
	EventPassed           EventType = "passed"
	EventRoleProven       EventType = "role_proven"
	EventBluffExposed     EventType = "bluff_exposed"
	EventActionResolved   EventType = "action_resolved"
	EventCoinsMoved       EventType = "coins_moved"
	EventRolesExchanged   EventType = "roles_exchanged"
	EventInfluenceLost    EventType = "influence_lost"
	EventPlayerEliminated EventType = "player_eliminated"
	EventTurnAdvanced     EventType = "turn_advanced"
	EventGameFinished     EventType = "game_finished"
)

// Event is the public record of one change. It never carries a sealed role;
// Role is set only when a role became public (proven or revealed).
type Event struct {
	Game     string     `json:"game"`
	Type     EventType  `json:"type"`
	ActionID string     `json:"action_id,omitempty"`
	Kind     ActionKind `json:"action_kind,omitempty"`
	Player   string     `json:"player,omitempty"`
	Target   string     `json:"target,omitempty"`
	Role     Role       `json:"role,omitempty"`
	Status   Status     `json:"status,omitempty"`
	Coins    uint       `json:"coins,omitempty"`
	At       time.Time  `json:"at"`
}

// Journal receives committed events in commit order.
type Journal interface {
	Append(kind string, payload any) error
}
