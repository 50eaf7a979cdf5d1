package coup

import (
	"context"
	"reflect"
	"testing"
)

func TestRegistryIsolatesGames(t *testing.T) {
	opts, f := testOptions(DefaultRules())
	r := NewRegistry(opts)
	ctx := context.Background()

	one, err := r.Open(ctx, "one")
	if err != nil {
		t.Fatalf("Open(one) error = %v", err)
	}
	two, err := r.Open(ctx, "two")
	if err != nil {
		t.Fatalf("Open(two) error = %v", err)
	}
	if again, _ := r.Open(ctx, "one"); again != one {
		t.Fatalf("Open(one) returned a second engine")
	}

	if _, err := one.Join(ctx, "alice"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if _, err := two.Join(ctx, "alice"); err != nil {
		t.Fatalf("Join() in another game error = %v", err)
	}
	if _, err := two.Join(ctx, "bob"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if got := len(one.Snapshot().Players); got != 1 {
		t.Fatalf("game one: expected 1 player, actual %d", got)
	}

	for _, key := range []string{"game/one/player_alice", "game/two/player_alice", "game/two/player_bob", "game/one/game_meta"} {
		if _, ok := f.ledger.data[key]; !ok {
			t.Fatalf("ledger has no %s", key)
		}
	}
	if _, ok := f.ledger.data["game/one/player_bob"]; ok {
		t.Fatalf("bob leaked into game one")
	}

	if got := r.IDs(); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Fatalf("IDs() = %v", got)
	}
	if _, ok := r.Get("three"); ok {
		t.Fatalf("Get(three) found a game that was never opened")
	}

	fresh := NewRegistry(opts)
	reloaded, err := fresh.Open(ctx, "two")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := len(reloaded.Snapshot().Players); got != 2 {
		t.Fatalf("reloaded game: expected 2 players, actual %d", got)
	}
}
