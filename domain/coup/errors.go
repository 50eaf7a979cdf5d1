package coup

import "fmt"

// Kind groups error codes by how a host should react to them.
type Kind string

const (
	// KindValidation marks malformed or illegal requests. Game state is unchanged.
	KindValidation Kind = "validation"
	// KindEconomic marks requests the actor cannot pay for.
	KindEconomic Kind = "economic"
	// KindStateConflict marks requests that clash with the game's lifecycle.
	KindStateConflict Kind = "state_conflict"
	// KindCapability marks a Vault or Ledger failure. Nothing was committed; retry.
	KindCapability Kind = "capability"
)

// Code is a machine-readable error code.
type Code string

const (
	// Validation
	CodeWrongPhase          Code = "WRONG_PHASE"
	CodeNotYourTurn         Code = "NOT_YOUR_TURN"
	CodeUnknownPlayer       Code = "UNKNOWN_PLAYER"
	CodeUnknownAction       Code = "UNKNOWN_ACTION"
	CodeInvalidPlayerID     Code = "INVALID_PLAYER_ID"
	CodePlayerNotAlive      Code = "PLAYER_NOT_ALIVE"
	CodeMissingTarget       Code = "MISSING_TARGET"
	CodeInvalidTarget       Code = "INVALID_TARGET"
	CodeMustCoup            Code = "MUST_COUP"
	CodeActionInFlight      Code = "ACTION_IN_FLIGHT"
	CodeLossOutstanding     Code = "LOSS_OUTSTANDING"
	CodeNoPendingAction     Code = "NO_PENDING_ACTION"
	CodeNotChallengeable    Code = "NOT_CHALLENGEABLE"
	CodeNotBlockable        Code = "NOT_BLOCKABLE"
	CodeNotEligible         Code = "NOT_ELIGIBLE"
	CodeAlreadyResponded    Code = "ALREADY_RESPONDED"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeInvalidSlot         Code = "INVALID_SLOT"
	CodeNoLossOwed          Code = "NO_LOSS_OWED"
	CodeNoSealedRoles       Code = "NO_SEALED_ROLES"
	CodeRoleNotHeld         Code = "ROLE_NOT_HELD"
	CodeNotEnoughPlayers    Code = "NOT_ENOUGH_PLAYERS"
	CodeInvalidRules        Code = "INVALID_RULES"
	CodeInsufficientFunds   Code = "INSUFFICIENT_FUNDS"
	CodeGameOver            Code = "GAME_OVER"
	CodeAlreadyJoined       Code = "ALREADY_JOINED"
	CodeGameFull            Code = "GAME_FULL"
	CodeVaultUnavailable    Code = "VAULT_UNAVAILABLE"
	CodeLedgerUnavailable   Code = "LEDGER_UNAVAILABLE"
	CodeCorruptLedgerRecord Code = "CORRUPT_LEDGER_RECORD"
)

// Kind maps a code to its place in the taxonomy.
func (c Code) Kind() Kind {
	switch c {
	case CodeInsufficientFunds:
		return KindEconomic
	case CodeGameOver, CodeAlreadyJoined, CodeGameFull:
		return KindStateConflict
	case CodeVaultUnavailable, CodeLedgerUnavailable, CodeCorruptLedgerRecord:
		return KindCapability
	default:
		return KindValidation
	}
}

// Error is the engine's structured error.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message for logs
	Metadata map[string]string // Request context (player, action, ...)
	Cause    error             // Wrapped capability error, if any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind returns the taxonomy group of the error.
func (e *Error) Kind() Kind { return e.Code.Kind() }

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func withMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func wrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is.
var (
	ErrWrongPhase        = newError(CodeWrongPhase, "wrong phase")
	ErrNotYourTurn       = newError(CodeNotYourTurn, "not your turn")
	ErrUnknownPlayer     = newError(CodeUnknownPlayer, "unknown player")
	ErrPlayerNotAlive    = newError(CodePlayerNotAlive, "player is not alive")
	ErrMissingTarget     = newError(CodeMissingTarget, "target required")
	ErrInvalidTarget     = newError(CodeInvalidTarget, "invalid target")
	ErrMustCoup          = newError(CodeMustCoup, "must coup")
	ErrActionInFlight    = newError(CodeActionInFlight, "action in flight")
	ErrLossOutstanding   = newError(CodeLossOutstanding, "influence loss outstanding")
	ErrNoPendingAction   = newError(CodeNoPendingAction, "no pending action")
	ErrNotChallengeable  = newError(CodeNotChallengeable, "not challengeable")
	ErrNotBlockable      = newError(CodeNotBlockable, "not blockable")
	ErrNotEligible       = newError(CodeNotEligible, "player cannot respond")
	ErrAlreadyResponded  = newError(CodeAlreadyResponded, "already responded")
	ErrInvalidSlot       = newError(CodeInvalidSlot, "invalid slot")
	ErrNoLossOwed        = newError(CodeNoLossOwed, "no influence loss owed")
	ErrNoSealedRoles     = newError(CodeNoSealedRoles, "no sealed roles")
	ErrRoleNotHeld       = newError(CodeRoleNotHeld, "role not held")
	ErrNotEnoughPlayers  = newError(CodeNotEnoughPlayers, "not enough players")
	ErrInsufficientFunds = newError(CodeInsufficientFunds, "insufficient funds")
	ErrGameOver          = newError(CodeGameOver, "game over")
	ErrAlreadyJoined     = newError(CodeAlreadyJoined, "already joined")
	ErrGameFull          = newError(CodeGameFull, "game full")
	ErrVaultUnavailable  = newError(CodeVaultUnavailable, "vault unavailable")
	ErrLedgerUnavailable = newError(CodeLedgerUnavailable, "ledger unavailable")
)
