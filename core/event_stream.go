package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"trustrent/core/types"
	"trustrent/observability"
)

const subscriberBuffer = 64

func cloneJournalEntry(entry types.JournalEntry) types.JournalEntry {
	cloned := entry
	cloned.Event = *entry.Event.Clone()
	return cloned
}

// publish fans committed entries out to subscribers. It runs under the state
// lock so subscribers observe journal order. A subscriber whose buffer is full
// is removed and its channel closed; it resumes from the journal with a new
// subscription after its last delivered sequence.
func (n *Node) publish(entries []types.JournalEntry) {
	if n == nil || len(entries) == 0 {
		return
	}
	metrics := observability.Events()
	for _, entry := range entries {
		metrics.RecordEvent(entry.Event.Type)
	}
	metrics.SetJournalHead(entries[len(entries)-1].Sequence)

	n.streamMu.Lock()
	defer n.streamMu.Unlock()
	for _, entry := range entries {
		for id, ch := range n.streamSubs {
			select {
			case ch <- cloneJournalEntry(entry):
			default:
				delete(n.streamSubs, id)
				close(ch)
				n.logger.Warn("event subscriber overflowed; closing stream",
					slog.Uint64("subscriber", id),
					slog.Uint64("sequence", entry.Sequence))
			}
		}
	}
}

// EventsSubscribe registers a subscriber for committed events with a sequence
// greater than after. The returned backlog holds already committed entries;
// live entries follow on the channel without gaps. The channel is closed when
// the subscription is cancelled or when the subscriber falls more than the
// buffer size behind, so a closed channel never hides a gap.
func (n *Node) EventsSubscribe(ctx context.Context, after uint64) (<-chan types.JournalEntry, func(), []types.JournalEntry, error) {
	if n == nil {
		return nil, nil, nil, fmt.Errorf("node not initialised")
	}
	updates := make(chan types.JournalEntry, subscriberBuffer)

	n.stateMu.RLock()
	backlog, err := n.newExecution(n.db, n.now().Unix()).manager.Events(after, 0)
	if err != nil {
		n.stateMu.RUnlock()
		return nil, nil, nil, err
	}
	n.streamMu.Lock()
	id := n.streamNextID
	n.streamNextID++
	n.streamSubs[id] = updates
	n.streamMu.Unlock()
	n.stateMu.RUnlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.streamMu.Lock()
			sub, ok := n.streamSubs[id]
			if ok {
				delete(n.streamSubs, id)
				close(sub)
			}
			n.streamMu.Unlock()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return updates, cancel, backlog, nil
}
