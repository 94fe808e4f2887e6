package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"trustrent/core/types"
)

var (
	journalPrefix  = []byte("journal/")
	genesisMarker  = []byte("genesis/applied")
	counterJournal = "journal"
)

type storedJournalEntry struct {
	Sequence  uint64
	Timestamp *big.Int
	Type      string
	Keys      []string
	Values    []string
}

func journalKey(seq uint64) []byte {
	return prefixedKey(journalPrefix, uint64Bytes(seq))
}

// AppendEvent stores evt in the event journal and returns its sequence number.
// Sequence numbers start at 1.
func (m *Manager) AppendEvent(timestamp int64, evt *types.Event) (uint64, error) {
	if evt == nil {
		return 0, fmt.Errorf("journal: nil event")
	}
	seq, err := m.NextID(counterJournal)
	if err != nil {
		return 0, err
	}
	stored := storedJournalEntry{Sequence: seq, Timestamp: big.NewInt(timestamp), Type: evt.Type}
	for _, attr := range evt.Attributes {
		stored.Keys = append(stored.Keys, attr.Key)
		stored.Values = append(stored.Values, attr.Value)
	}
	encoded, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return 0, err
	}
	if err := m.db.Put(journalKey(seq), encoded); err != nil {
		return 0, err
	}
	return seq, nil
}

// JournalHead returns the sequence number of the latest journal entry.
func (m *Manager) JournalHead() (uint64, error) { return m.Counter(counterJournal) }

// Events returns up to limit journal entries with a sequence greater than
// after, in sequence order. A zero limit returns every remaining entry.
func (m *Manager) Events(after uint64, limit int) ([]types.JournalEntry, error) {
	out := make([]types.JournalEntry, 0)
	var decodeErr error
	err := m.db.Iterate(journalPrefix, func(key, value []byte) bool {
		if len(key) != len(journalPrefix)+8 {
			return true
		}
		seq := binary.BigEndian.Uint64(key[len(journalPrefix):])
		if seq <= after {
			return true
		}
		var stored storedJournalEntry
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			decodeErr = fmt.Errorf("journal: decode entry %d: %w", seq, err)
			return false
		}
		entry := types.JournalEntry{
			Sequence:  stored.Sequence,
			Timestamp: bigOrZero(stored.Timestamp).Int64(),
			Event:     types.Event{Type: stored.Type, Attributes: make([]types.Attribute, 0, len(stored.Keys))},
		}
		for i, key := range stored.Keys {
			if i < len(stored.Values) {
				entry.Event.Attributes = append(entry.Event.Attributes, types.Attribute{Key: key, Value: stored.Values[i]})
			}
		}
		out = append(out, entry)
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}

// GenesisApplied reports whether genesis allocations have been applied.
func (m *Manager) GenesisApplied() (bool, error) {
	var applied bool
	ok, err := m.KVGet(genesisMarker, &applied)
	if err != nil {
		return false, err
	}
	return ok && applied, nil
}

// MarkGenesisApplied records that genesis allocations have been applied.
func (m *Manager) MarkGenesisApplied() error {
	return m.KVPut(genesisMarker, true)
}
