package state

import (
	"bytes"
	"sort"

	"trustrent/storage"
)

// Overlay buffers writes on top of a base database. Reads observe pending
// writes. Commit applies every pending write to the base through a single
// batch; Discard drops them. An overlay is not safe for concurrent use.
type Overlay struct {
	base    storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewOverlay opens an empty overlay over base.
func NewOverlay(base storage.Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	k := string(key)
	delete(o.deletes, k)
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		return nil, storage.ErrNotFound
	}
	if value, ok := o.writes[k]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		return false, nil
	}
	if _, ok := o.writes[k]; ok {
		return true, nil
	}
	return o.base.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

// Iterate merges pending writes with the base view.
func (o *Overlay) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	if err := o.base.Iterate(prefix, func(key, value []byte) bool {
		merged[string(key)] = value
		return true
	}); err != nil {
		return err
	}
	for k := range o.deletes {
		delete(merged, k)
	}
	for k, v := range o.writes {
		if bytes.HasPrefix([]byte(k), prefix) {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), append([]byte(nil), merged[k]...)) {
			return nil
		}
	}
	return nil
}

// NewBatch returns a batch that writes into the overlay.
func (o *Overlay) NewBatch() storage.Batch { return &overlayBatch{overlay: o} }

// Close is a no-op; the base database is owned by the caller.
func (o *Overlay) Close() {}

// Pending reports the number of buffered writes and deletes.
func (o *Overlay) Pending() int { return len(o.writes) + len(o.deletes) }

// Commit flushes pending changes to the base database atomically.
func (o *Overlay) Commit() error {
	if o.Pending() == 0 {
		return nil
	}
	batch := o.base.NewBatch()
	for k := range o.deletes {
		batch.Delete([]byte(k))
	}
	for k, v := range o.writes {
		batch.Put([]byte(k), v)
	}
	if err := batch.Write(); err != nil {
		return err
	}
	o.Discard()
	return nil
}

// Discard drops pending changes.
func (o *Overlay) Discard() {
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}

type overlayBatch struct {
	overlay *Overlay
	ops     []func()
}

func (b *overlayBatch) Put(key, value []byte) {
	k, v := append([]byte(nil), key...), append([]byte(nil), value...)
	b.ops = append(b.ops, func() { _ = b.overlay.Put(k, v) })
}

func (b *overlayBatch) Delete(key []byte) {
	k := append([]byte(nil), key...)
	b.ops = append(b.ops, func() { _ = b.overlay.Delete(k) })
}

func (b *overlayBatch) Len() int { return len(b.ops) }

func (b *overlayBatch) Write() error {
	for _, op := range b.ops {
		op()
	}
	b.ops = nil
	return nil
}
