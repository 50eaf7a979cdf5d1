package coup

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role is one of the five court characters.
type Role string

const (
	Duke       Role = "Duke"
	Assassin   Role = "Assassin"
	Captain    Role = "Captain"
	Ambassador Role = "Ambassador"
	Contessa   Role = "Contessa"
)

// Roles lists the closed role set in a stable order.
var Roles = []Role{Duke, Assassin, Captain, Ambassador, Contessa}

// Valid reports whether r belongs to the role set.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole resolves a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for _, known := range Roles {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ActionKind names one row of the action catalog.
type ActionKind string

const (
	Income      ActionKind = "income"
	ForeignAid  ActionKind = "foreign_aid"
	CoupAction  ActionKind = "coup"
	Tax         ActionKind = "tax"
	Assassinate ActionKind = "assassinate"
	Steal       ActionKind = "steal"
	Exchange    ActionKind = "exchange"
)

// ActionKinds lists every kind in catalog order.
var ActionKinds = []ActionKind{Income, ForeignAid, CoupAction, Tax, Assassinate, Steal, Exchange}

// ParseActionKind accepts the canonical name or its spaced form ("foreign aid").
func ParseActionKind(s string) (ActionKind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	norm = strings.ReplaceAll(norm, "-", "_")
	for _, k := range ActionKinds {
		if norm == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

func (k *ActionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseActionKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Status is the resolution state of an Action.
type Status string

const (
	StatusPending         Status = "pending"
	StatusBlocked         Status = "blocked"
	StatusChallenged      Status = "challenged"
	StatusResolvedSuccess Status = "resolved_success"
	StatusResolvedFailure Status = "resolved_failure"
)

// rank orders statuses so transitions can be checked for monotonicity.
// A challenge may follow a block, never the other way around.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusBlocked:
		return 1
	case StatusChallenged:
		return 2
	case StatusResolvedSuccess, StatusResolvedFailure:
		return 3
	default:
		return -1
	}
}

// Terminal reports whether s is one of the two resolved states.
func (s Status) Terminal() bool {
	return s == StatusResolvedSuccess || s == StatusResolvedFailure
}

func (s *Status) UnmarshalText(b []byte) error {
	v := Status(b)
	if v.rank() < 0 {
		return fmt.Errorf("unknown action status %q", string(b))
	}
	*s = v
	return nil
}

// Phase is the lifecycle stage of a Game.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

func (p *Phase) UnmarshalText(b []byte) error {
	switch v := Phase(b); v {
	case PhaseLobby, PhaseActive, PhaseFinished:
		*p = v
		return nil
	default:
		return fmt.Errorf("unknown phase %q", string(b))
	}
}

// Handle references a role sealed in the Vault. The engine never looks inside.
type Handle string

// Slot is one influence: either sealed behind a handle or revealed face up.
type Slot struct {
	Handle   Handle
	Revealed Role
}

// SealedSlot builds a slot holding a sealed handle.
func SealedSlot(h Handle) Slot { return Slot{Handle: h} }

// RevealedSlot builds a face-up slot.
func RevealedSlot(r Role) Slot { return Slot{Revealed: r} }

// IsSealed reports whether the slot still counts as influence.
func (s Slot) IsSealed() bool { return s.Revealed == "" }

type slotJSON struct {
	State  string `json:"state"`
	Handle Handle `json:"handle,omitempty"`
	Role   Role   `json:"role,omitempty"`
}

// MarshalJSON encodes the slot as a tagged variant.
func (s Slot) MarshalJSON() ([]byte, error) {
	if s.IsSealed() {
		if s.Handle == "" {
			return nil, fmt.Errorf("sealed slot without handle")
		}
		return json.Marshal(slotJSON{State: "sealed", Handle: s.Handle})
	}
	return json.Marshal(slotJSON{State: "revealed", Role: s.Revealed})
}

func (s *Slot) UnmarshalJSON(b []byte) error {
	var v slotJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.State {
	case "sealed":
		if v.Handle == "" || v.Role != "" {
			return fmt.Errorf("malformed sealed slot")
		}
		*s = SealedSlot(v.Handle)
	case "revealed":
		if !v.Role.Valid() || v.Handle != "" {
			return fmt.Errorf("malformed revealed slot")
		}
		*s = RevealedSlot(v.Role)
	default:
		return fmt.Errorf("unknown slot state %q", v.State)
	}
	return nil
}

// Player holds the economic and role-custody state of one participant.
type Player struct {
	ID    string  `json:"id"`
	Coins uint    `json:"coins"`
	Slots [2]Slot `json:"slots"`
}

// SealedCount returns the remaining influence.
func (p *Player) SealedCount() int {
	n := 0
	for _, s := range p.Slots {
		if s.IsSealed() {
			n++
		}
	}
	return n
}

// Alive is derived from the slots, never stored.
func (p *Player) Alive() bool { return p.SealedCount() > 0 }

// Revealed returns the face-up roles in slot order.
func (p *Player) Revealed() []Role {
	var out []Role
	for _, s := range p.Slots {
		if !s.IsSealed() {
			out = append(out, s.Revealed)
		}
	}
	return out
}

// Block is a claim by a non-actor to hold a role that stops the action.
type Block struct {
	Player string `json:"player"`
	Role   Role   `json:"role"`
}

// ChallengeTarget says which claim a challenge disputes.
type ChallengeTarget string

const (
	AgainstAction ChallengeTarget = "action"
	AgainstBlock  ChallengeTarget = "block"
)

// ChallengeOutcome is empty until the proof has run.
type ChallengeOutcome string

const (
	OutcomeProven  ChallengeOutcome = "proven"
	OutcomeRefuted ChallengeOutcome = "refuted"
)

// Challenge disputes the role implicitly claimed by the actor or the blocker.
type Challenge struct {
	Player  string           `json:"player"`
	Against ChallengeTarget  `json:"against"`
	Outcome ChallengeOutcome `json:"outcome,omitempty"`
}

// Action is one entry of the append-only action log. Only Status and the
// resolution bookkeeping change after it is appended.
type Action struct {
	ID        string     `json:"id"`
	Actor     string     `json:"actor"`
	Kind      ActionKind `json:"action_kind"`
	Target    string     `json:"target,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Status    Status     `json:"status"`
	Deadline  time.Time  `json:"deadline,omitzero"`
	Paid      uint       `json:"paid,omitempty"`
	Swap      []int      `json:"swap,omitempty"`
	Block     *Block     `json:"block,omitempty"`
	Challenge *Challenge `json:"challenge,omitempty"`
	Passes    []string   `json:"passes,omitempty"`
}

func (a *Action) advance(to Status) error {
	if a.Status.Terminal() || to.rank() <= a.Status.rank() {
		return newError(CodeInvalidTransition, fmt.Sprintf("action %s cannot move from %s to %s", a.ID, a.Status, to))
	}
	a.Status = to
	return nil
}

func (a *Action) passed(player string) bool {
	for _, p := range a.Passes {
		if p == player {
			return true
		}
	}
	return false
}

// Loss is an influence a player owes and must pay by revealing a slot.
type Loss struct {
	Player   string `json:"player"`
	ActionID string `json:"action_id"`
	Reason   string `json:"reason"`
}

// Game is the full state of one table. The engine owns every record in it.
type Game struct {
	ID        string    `json:"id"`
	Phase     Phase     `json:"phase"`
	Players   []*Player `json:"players"`
	TurnIndex int       `json:"turn_index"`
	Actions   []*Action `json:"actions"`
	Winner    string    `json:"winner,omitempty"`
	Losses    []Loss    `json:"losses,omitempty"`
}

// Player returns the player with the given id, or nil.
func (g *Game) Player(id string) *Player {
	for _, p := range g.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Current returns the player whose turn it is, or nil outside the active phase.
func (g *Game) Current() *Player {
	if g.Phase != PhaseActive || g.TurnIndex < 0 || g.TurnIndex >= len(g.Players) {
		return nil
	}
	return g.Players[g.TurnIndex]
}

// InFlight returns the last action when it has not reached a terminal status.
func (g *Game) InFlight() *Action {
	if len(g.Actions) == 0 {
		return nil
	}
	last := g.Actions[len(g.Actions)-1]
	if last.Status.Terminal() {
		return nil
	}
	return last
}

// Action looks up a logged action by id.
func (g *Game) Action(id string) *Action {
	for _, a := range g.Actions {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Alive returns the alive players in join order.
func (g *Game) Alive() []*Player {
	var out []*Player
	for _, p := range g.Players {
		if p.Alive() {
			out = append(out, p)
		}
	}
	return out
}

// Owed counts the outstanding losses of a player.
func (g *Game) Owed(player string) int {
	n := 0
	for _, l := range g.Losses {
		if l.Player == player {
			n++
		}
	}
	return n
}

// Clone returns a deep copy that shares nothing with g.
func (g *Game) Clone() *Game {
	c := &Game{
		ID:        g.ID,
		Phase:     g.Phase,
		TurnIndex: g.TurnIndex,
		Winner:    g.Winner,
		Players:   make([]*Player, len(g.Players)),
		Actions:   make([]*Action, len(g.Actions)),
		Losses:    append([]Loss(nil), g.Losses...),
	}
	for i, p := range g.Players {
		cp := *p
		c.Players[i] = &cp
	}
	for i, a := range g.Actions {
		c.Actions[i] = a.clone()
	}
	return c
}

func (a *Action) clone() *Action {
	c := *a
	c.Swap = append([]int(nil), a.Swap...)
	c.Passes = append([]string(nil), a.Passes...)
	if a.Block != nil {
		b := *a.Block
		c.Block = &b
	}
	if a.Challenge != nil {
		ch := *a.Challenge
		c.Challenge = &ch
	}
	return &c
}
