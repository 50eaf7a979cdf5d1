package ledger

import "encoding/json"

// Block records one committed event.
type Block struct {
	Index     int             `json:"index"`
	Timestamp int64           `json:"timestamp"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}
