package ledger

import (
	"encoding/json"
	"testing"
)

type moved struct {
	Player string `json:"player"`
	Coins  uint   `json:"coins"`
}

// TestNewBlockchain verifies that a new blockchain holds a single valid genesis block.
func TestNewBlockchain(t *testing.T) {
	bc := NewBlockchain()
	if bc.Len() != 1 {
		t.Fatalf("expected 1 block, actual %d", bc.Len())
	}
	genesis, err := bc.GetByIndex(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if genesis.Kind != genesisKind || genesis.PrevHash != "0" {
		t.Fatalf("unexpected genesis block %+v", genesis)
	}
	if err := bc.Verify(); err != nil {
		t.Fatalf("fresh blockchain verification failed: %v", err)
	}
}

// TestAppendValidBlock verifies that appended blocks are linked to their predecessor
// and keep the encoded payload.
func TestAppendValidBlock(t *testing.T) {
	bc := NewBlockchain()
	if err := bc.Append("coins_moved", moved{Player: "alice", Coins: 3}); err != nil {
		t.Fatalf("unexpected error appending block: %v", err)
	}

	latest, err := bc.GetLatest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	genesis, _ := bc.GetByIndex(0)
	if latest.Index != 1 || latest.PrevHash != genesis.Hash {
		t.Fatalf("block not linked to genesis: %+v", latest)
	}
	var got moved
	if err := json.Unmarshal(latest.Payload, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.Player != "alice" || got.Coins != 3 {
		t.Fatalf("expected alice/3, actual %+v", got)
	}
}

// TestAppendRejectsInvalidInput verifies that blocks without a kind or with an
// unencodable payload never enter the chain.
func TestAppendRejectsInvalidInput(t *testing.T) {
	bc := NewBlockchain()
	if err := bc.Append(" ", moved{}); err == nil {
		t.Fatal("expected error for empty kind, got nil")
	}
	if err := bc.Append(genesisKind, moved{}); err == nil {
		t.Fatal("expected error for a second genesis, got nil")
	}
	if err := bc.Append("bad", make(chan int)); err == nil {
		t.Fatal("expected error for unencodable payload, got nil")
	}
	if bc.Len() != 1 {
		t.Fatalf("rejected blocks were appended: %d blocks", bc.Len())
	}
}

// TestBlocksByKind verifies filtering by event kind.
func TestBlocksByKind(t *testing.T) {
	bc := NewBlockchain()
	for _, kind := range []string{"passed", "coins_moved", "passed"} {
		if err := bc.Append(kind, moved{}); err != nil {
			t.Fatalf("unexpected error appending block: %v", err)
		}
	}
	if got := len(bc.Blocks("passed")); got != 2 {
		t.Fatalf("expected 2 passed blocks, actual %d", got)
	}
	if got := len(bc.Blocks("")); got != 4 {
		t.Fatalf("expected 4 blocks, actual %d", got)
	}
}

// TestGetByIndexOutOfRange verifies that GetByIndex returns an error for invalid indices.
func TestGetByIndexOutOfRange(t *testing.T) {
	bc := NewBlockchain()
	if _, err := bc.GetByIndex(10); err == nil {
		t.Fatal("expected error for out of range index, got nil")
	}
	if _, err := bc.GetByIndex(-1); err == nil {
		t.Fatal("expected error for negative index, got nil")
	}
}

// TestGetLatestEmptyBlockchain verifies that GetLatest returns an error when called on an
// empty blockchain.
func TestGetLatestEmptyBlockchain(t *testing.T) {
	bc := &Blockchain{blocks: []Block{}}
	if _, err := bc.GetLatest(); err == nil {
		t.Fatal("expected error for empty blockchain, got nil")
	}
	if err := bc.Verify(); err == nil {
		t.Fatal("expected error for empty blockchain verification, got nil")
	}
}

// TestVerifyDetectsTampering verifies that any modification of a recorded block
// breaks verification.
func TestVerifyDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(bc *Blockchain)
	}{
		{"genesis prev hash", func(bc *Blockchain) { bc.blocks[0].PrevHash = "invalid" }},
		{"block hash", func(bc *Blockchain) { bc.blocks[1].Hash = "tamperedhash" }},
		{"chain link", func(bc *Blockchain) { bc.blocks[2].PrevHash = "wronghash" }},
		{"index", func(bc *Blockchain) { bc.blocks[2].Index = 7 }},
		{"payload", func(bc *Blockchain) { bc.blocks[1].Payload = json.RawMessage(`{"player":"mallory","coins":99}`) }},
		{"kind", func(bc *Blockchain) { bc.blocks[2].Kind = "game_finished" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := NewBlockchain()
			for i := 0; i < 3; i++ {
				if err := bc.Append("coins_moved", moved{Player: "alice", Coins: uint(i)}); err != nil {
					t.Fatalf("unexpected error appending block: %v", err)
				}
			}
			if err := bc.Verify(); err != nil {
				t.Fatalf("valid blockchain verification failed: %v", err)
			}
			tt.tamper(bc)
			if err := bc.Verify(); err == nil {
				t.Fatal("expected error for tampered blockchain, got nil")
			}
		})
	}
}
