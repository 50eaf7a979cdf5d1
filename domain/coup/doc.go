// Package coup implements the rule engine for Coup, a bluffing game where every
// player secretly holds two role cards and uses coins, challenges and blocks to
// eliminate the others.
//
// # Core Types
//
// Game: The complete state of one table: players in join order, the turn
// index, the append-only action log, the phase and outstanding influence losses.
//
// Player: Coins plus exactly two role slots. A slot is either sealed (a handle
// into the confidential store) or revealed (a public role). A player is alive
// while at least one slot is sealed.
//
// Action: One attempted move and its resolution status. Status only moves
// forward: pending, then blocked or challenged, then resolved.
//
// # Game Flow
//
// Players join in the lobby and the host starts the game. The current player
// submits an action; contested actions stay open while the other players pass,
// challenge or block. Challenges are settled by asking the confidential store
// to prove the claimed role without exposing the other one. When an action is
// resolved the turn moves to the next alive player, and the game finishes as
// soon as a single player remains.
//
// # Capabilities
//
// The engine never stores roles in the clear. It depends on a Vault to seal,
// compare and reveal roles, and on a Ledger to persist player and action
// records under the keys player_{id}, game_players, action_{id}, game_actions
// and game_meta. Committed events are handed to an optional Journal.
//
// # Concurrency
//
// Each Engine serializes its mutations behind a single lock and works on a copy
// of the game, so a failed capability call never leaves a half-applied state.
// Queries take the read lock and return deep copies.
package coup
