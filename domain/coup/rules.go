package coup

import (
	"fmt"
	"time"
)

// ActionSpec is one row of the action catalog.
type ActionSpec struct {
	Kind           ActionKind
	Cost           uint
	Gain           uint // coins taken from the treasury on success
	RequiresRole   Role // empty when anyone may take the action
	RequiresTarget bool
	BlockableBy    []Role
	// Upfront costs are paid at submission and never refunded, even when the
	// action is blocked or exposed as a bluff.
	Upfront bool
}

var catalog = map[ActionKind]ActionSpec{
	Income:      {Kind: Income, Gain: 1},
	ForeignAid:  {Kind: ForeignAid, Gain: 2, BlockableBy: []Role{Duke}},
	CoupAction:  {Kind: CoupAction, Cost: 7, RequiresTarget: true, Upfront: true},
	Tax:         {Kind: Tax, Gain: 3, RequiresRole: Duke},
	Assassinate: {Kind: Assassinate, Cost: 3, RequiresRole: Assassin, RequiresTarget: true, BlockableBy: []Role{Contessa}, Upfront: true},
	Steal:       {Kind: Steal, RequiresRole: Captain, RequiresTarget: true, BlockableBy: []Role{Captain, Ambassador}},
	Exchange:    {Kind: Exchange, RequiresRole: Ambassador},
}

// stealLimit caps the coins a Steal can move.
const stealLimit = 2

// Lookup returns the catalog row for kind.
func Lookup(kind ActionKind) (ActionSpec, bool) {
	s, ok := catalog[kind]
	return s, ok
}

// Challengeable reports whether the action claims a role that can be disputed.
func (s ActionSpec) Challengeable() bool { return s.RequiresRole != "" }

// Blockable reports whether any role can block the action.
func (s ActionSpec) Blockable() bool { return len(s.BlockableBy) > 0 }

// CanBlock reports whether claiming r blocks the action.
func (s ActionSpec) CanBlock(r Role) bool {
	for _, b := range s.BlockableBy {
		if b == r {
			return true
		}
	}
	return false
}

// Contested reports whether other players get a chance to respond.
func (s ActionSpec) Contested() bool { return s.Challengeable() || s.Blockable() }

// Rules are the host-configurable parameters of a table.
type Rules struct {
	MinPlayers int
	MaxPlayers int // 0 means uncapped
	// AllowLateJoin lets players join an active game at the end of the turn order.
	AllowLateJoin bool
	// DecisionWindow is how long responders have before ExpireDue resolves an
	// open action. Zero disables deadlines; the host then calls Resolve.
	DecisionWindow time.Duration
	// MandatoryCoupAt forces a Coup once the actor holds that many coins. Zero disables it.
	MandatoryCoupAt uint
	// TargetOnlyBlocks restricts blocks of targeted actions to their target.
	TargetOnlyBlocks bool
	StartingCoins    uint
}

// DefaultRules returns the tabletop defaults with deadlines disabled.
func DefaultRules() Rules {
	return Rules{
		MinPlayers:      2,
		MaxPlayers:      6,
		MandatoryCoupAt: 10,
		StartingCoins:   2,
	}
}

// Validate rejects rule sets the engine cannot run.
func (r Rules) Validate() error {
	if r.MinPlayers < 2 {
		return newError(CodeInvalidRules, fmt.Sprintf("minimum players must be at least 2, got %d", r.MinPlayers))
	}
	if r.MaxPlayers != 0 && r.MaxPlayers < r.MinPlayers {
		return newError(CodeInvalidRules, fmt.Sprintf("maximum players %d below minimum %d", r.MaxPlayers, r.MinPlayers))
	}
	if r.DecisionWindow < 0 {
		return newError(CodeInvalidRules, "decision window cannot be negative")
	}
	if r.MandatoryCoupAt != 0 && r.MandatoryCoupAt < catalog[CoupAction].Cost {
		return newError(CodeInvalidRules, fmt.Sprintf("mandatory coup threshold %d below coup cost", r.MandatoryCoupAt))
	}
	return nil
}
