package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/luca-patrignani/mental-coup/config"
	"github.com/luca-patrignani/mental-coup/domain/coup"
	"github.com/luca-patrignani/mental-coup/domain/vault"
	"github.com/luca-patrignani/mental-coup/ledger"
)

const (
	optionPass      = "Pass"
	optionChallenge = "Challenge"
	optionPeek      = "Show my roles"
	blockPrefix     = "Block as "
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	level, _ := cfg.Level()
	pterm.DefaultLogger.Level = ptermLevel(level)
	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))

	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("M", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("ental ", pterm.FgDarkGray.ToStyle()),
		putils.LettersFromStringWithStyle("C", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("oup", pterm.FgDarkGray.ToStyle()),
	).Render()

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("game aborted", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, closeStore, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("close ledger", "error", err)
		}
	}()

	if tables, err := storedTables(ctx, store); err != nil {
		logger.Warn("list stored tables", "error", err)
	} else if len(tables) > 0 {
		logger.Info("ledger holds tables", "tables", tables)
	}

	journal := ledger.NewBlockchain()
	roles := vault.New()
	registry := coup.NewRegistry(coup.Options{
		Rules:   cfg.Rules(),
		Ledger:  store,
		Vault:   roles,
		Journal: journal,
		Logger:  logger,
	})

	e, err := registry.Open(ctx, cfg.GameID)
	if err != nil {
		return fmt.Errorf("open game %s: %w", cfg.GameID, err)
	}
	if e.Snapshot().Phase != coup.PhaseLobby {
		// Sealed roles live in this process only, so a started game cannot be resumed.
		id := cfg.GameID + "-" + uuid.NewString()[:8]
		logger.Warn("stored game already started, opening a new table", "stored", cfg.GameID, "game", id)
		if e, err = registry.Open(ctx, id); err != nil {
			return fmt.Errorf("open game %s: %w", id, err)
		}
	}
	pterm.Info.Printfln("Table %s", e.ID())

	if err := seatPlayers(ctx, e, roles); err != nil {
		return err
	}
	if err := play(ctx, e); err != nil {
		return err
	}

	g := e.Snapshot()
	printState(g, winnerPanel(g))
	if err := journal.Verify(); err != nil {
		return fmt.Errorf("journal verification: %w", err)
	}
	pterm.Success.Printfln("Journal verified: %d blocks", journal.Len())
	return nil
}

func openLedger(cfg config.Config) (coup.Ledger, func() error, error) {
	if cfg.LedgerPath == "" {
		return ledger.NewMemory(), func() error { return nil }, nil
	}
	store, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	return store, store.Close, nil
}

type keyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// storedTables lists the game ids the registry has written to the ledger.
func storedTables(ctx context.Context, store coup.Ledger) ([]string, error) {
	kl, ok := store.(keyLister)
	if !ok {
		return nil, nil
	}
	keys, err := kl.Keys(ctx, "game/")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, k := range keys {
		id, rest, ok := strings.Cut(strings.TrimPrefix(k, "game/"), "/")
		if ok && rest == "game_meta" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func seatPlayers(ctx context.Context, e *coup.Engine, roles *vault.Store) error {
	rules := e.Rules()
	pterm.Info.Printfln("Seat %d to %d players, then type done", rules.MinPlayers, rules.MaxPlayers)
	for {
		name, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("Player name").Show()
		name = strings.TrimSpace(name)
		if name == "done" {
			err := e.Start(ctx)
			if err == nil {
				return nil
			}
			if !errors.Is(err, coup.ErrNotEnoughPlayers) {
				return err
			}
			pterm.Error.Println(err.Error())
			continue
		}
		if _, err := e.Join(ctx, name); err != nil {
			if isFatal(err) {
				return err
			}
			printError(err)
			continue
		}
		pterm.Success.Printfln("%s joined, sealing key %s", name, fingerprint(roles, name))
	}
}

// isFatal reports whether err is a capability failure the CLI cannot recover from.
func isFatal(err error) bool {
	var ce *coup.Error
	if errors.As(err, &ce) {
		return ce.Kind() == coup.KindCapability
	}
	return true
}

func play(ctx context.Context, e *coup.Engine) error {
	for {
		if _, err := e.ExpireDue(ctx, time.Now()); err != nil && isFatal(err) {
			return err
		}
		g := e.Snapshot()
		if g.Phase == coup.PhaseFinished {
			return nil
		}
		printState(g)

		var err error
		switch {
		case len(g.Losses) > 0:
			err = payLoss(ctx, e, g.Losses[0])
		case g.InFlight() != nil:
			err = collectResponses(ctx, e, g, *g.InFlight())
		default:
			err = takeTurn(ctx, e, g.Current().ID)
		}
		if err == nil {
			continue
		}
		if isFatal(err) {
			return err
		}
		printError(err)
	}
}

func handOver(player string) {
	_, _ = pterm.DefaultInteractiveConfirm.WithDefaultText(fmt.Sprintf("Pass the terminal to %s. Ready?", pterm.LightCyan(player))).WithDefaultValue(true).Show()
}

func takeTurn(ctx context.Context, e *coup.Engine, player string) error {
	handOver(player)
	options := []string{optionPeek}
	for _, k := range coup.ActionKinds {
		options = append(options, label(string(k)))
	}
	for {
		choice, _ := pterm.DefaultInteractiveSelect.WithDefaultText(player + ", choose your action").WithOptions(options).Show()
		if choice == optionPeek {
			if err := peek(e, player); err != nil {
				return err
			}
			continue
		}
		kind, err := coup.ParseActionKind(choice)
		if err != nil {
			return err
		}
		req := coup.ActionRequest{Actor: player, Kind: kind}
		spec, _ := coup.Lookup(kind)
		if spec.RequiresTarget {
			req.Target, _ = pterm.DefaultInteractiveSelect.WithDefaultText("Target").WithOptions(targets(e.Snapshot(), player)).Show()
		}
		if kind == coup.Exchange {
			if req.Swap, err = pickSwap(e, player); err != nil {
				return err
			}
		}
		a, err := e.SubmitAction(ctx, req)
		if err != nil {
			return err
		}
		pterm.Info.Println(describeAction(a))
		return nil
	}
}

func targets(g *coup.Game, actor string) []string {
	var out []string
	for _, p := range g.Alive() {
		if p.ID != actor {
			out = append(out, p.ID)
		}
	}
	return out
}

func pickSwap(e *coup.Engine, player string) ([]int, error) {
	hand, err := e.Hand(player)
	if err != nil {
		return nil, err
	}
	var options []string
	for i, s := range hand {
		if s.Sealed {
			options = append(options, fmt.Sprintf("%d: %s", i+1, s.Role))
		}
	}
	picked, _ := pterm.DefaultInteractiveMultiselect.WithDefaultText("Roles to exchange (none selects all)").WithOptions(options).Show()
	var swap []int
	for _, p := range picked {
		n, err := strconv.Atoi(strings.SplitN(p, ":", 2)[0])
		if err != nil {
			return nil, err
		}
		swap = append(swap, n-1)
	}
	return swap, nil
}

func peek(e *coup.Engine, player string) error {
	hand, err := e.Hand(player)
	if err != nil {
		return err
	}
	printHand(player, hand)
	return nil
}

// responders lists the players who may still answer the open claim, in seat order.
func responders(g *coup.Game, a coup.Action) []string {
	claimant := a.Actor
	if a.Status == coup.StatusBlocked && a.Block != nil {
		claimant = a.Block.Player
	}
	passed := map[string]bool{}
	for _, p := range a.Passes {
		passed[p] = true
	}
	var out []string
	for _, p := range g.Alive() {
		if p.ID != claimant && !passed[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}

// responseOptions lists what player may answer to the open claim.
func responseOptions(rules coup.Rules, a coup.Action, player string) []string {
	options := []string{optionPass}
	spec, _ := coup.Lookup(a.Kind)
	switch a.Status {
	case coup.StatusPending:
		if spec.Challengeable() {
			options = append(options, optionChallenge)
		}
		if rules.TargetOnlyBlocks && spec.RequiresTarget && player != a.Target {
			break
		}
		for _, r := range spec.BlockableBy {
			options = append(options, blockPrefix+string(r))
		}
	case coup.StatusBlocked:
		options = append(options, optionChallenge)
	}
	return options
}

func collectResponses(ctx context.Context, e *coup.Engine, g *coup.Game, a coup.Action) error {
	if a.Status == coup.StatusChallenged {
		// A proof failed earlier; retry it.
		_, err := e.Resolve(ctx, a.ID)
		return err
	}
	for _, player := range responders(g, a) {
		handOver(player)
		options := append(responseOptions(e.Rules(), a, player), optionPeek)
		for {
			choice, _ := pterm.DefaultInteractiveSelect.WithDefaultText(fmt.Sprintf("%s: %s", player, describeAction(a))).WithOptions(options).Show()
			var (
				next coup.Action
				err  error
			)
			switch {
			case choice == optionPeek:
				if err := peek(e, player); err != nil {
					return err
				}
				continue
			case choice == optionPass:
				next, err = e.Pass(ctx, player)
			case choice == optionChallenge:
				next, err = e.SubmitChallenge(ctx, player)
			case strings.HasPrefix(choice, blockPrefix):
				role, perr := coup.ParseRole(strings.TrimPrefix(choice, blockPrefix))
				if perr != nil {
					return perr
				}
				next, err = e.SubmitBlock(ctx, player, role)
			}
			if err != nil {
				return err
			}
			if choice != optionPass || next.Status != a.Status {
				pterm.Info.Println(describeAction(next))
				return nil
			}
			break
		}
	}
	return nil
}

func payLoss(ctx context.Context, e *coup.Engine, loss coup.Loss) error {
	handOver(loss.Player)
	hand, err := e.Hand(loss.Player)
	if err != nil {
		return err
	}
	var options []string
	for i, s := range hand {
		if s.Sealed {
			options = append(options, fmt.Sprintf("%d: %s", i+1, s.Role))
		}
	}
	choice, _ := pterm.DefaultInteractiveSelect.WithDefaultText(fmt.Sprintf("%s loses an influence (%s). Reveal which role?", loss.Player, loss.Reason)).WithOptions(options).Show()
	n, err := strconv.Atoi(strings.SplitN(choice, ":", 2)[0])
	if err != nil {
		return err
	}
	role, err := e.LoseInfluence(ctx, loss.Player, n-1)
	if err != nil {
		return err
	}
	pterm.Warning.Printfln("%s revealed %s", loss.Player, role)
	return nil
}
