package sim

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/holdable/internal/core/holdable"
	"github.com/zeusync/holdable/internal/core/models"
)

var (
	_ holdable.AttachedCounter   = (*attachedIndex)(nil)
	_ holdable.PlacementObserver = (*attachedIndex)(nil)
)

// attachedIndex counts attached items per (container, definition). It is
// maintained from placement notifications, so counts never need a scan.
type attachedIndex struct {
	counts map[uint64]int
	// keys remembers where each attached item was counted.
	keys map[models.EntityID]uint64
	// next is notified after the index is updated.
	next holdable.PlacementObserver
}

func newAttachedIndex() *attachedIndex {
	return &attachedIndex{
		counts: make(map[uint64]int),
		keys:   make(map[models.EntityID]uint64),
	}
}

func indexKey(container models.ContainerID, def models.DefinitionID) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(container))
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(string(def))
	return d.Sum64()
}

func (x *attachedIndex) CountAttached(container models.ContainerID, def models.DefinitionID) int {
	return x.counts[indexKey(container, def)]
}

func (x *attachedIndex) PlacementChanged(h *holdable.Holdable, from, to models.Placement) {
	id := h.Item().ID()
	if from == models.PlacementAttached {
		x.forget(id)
	}
	if to == models.PlacementAttached {
		key := indexKey(h.Item().Container(), h.Definition().ID)
		x.keys[id] = key
		x.counts[key]++
	}
	if x.next != nil {
		x.next.PlacementChanged(h, from, to)
	}
}

// forget drops id from the counts. Removing a still-attached item goes
// through here since removal does not commit a transition.
func (x *attachedIndex) forget(id models.EntityID) {
	key, ok := x.keys[id]
	if !ok {
		return
	}
	delete(x.keys, id)
	if x.counts[key]--; x.counts[key] <= 0 {
		delete(x.counts, key)
	}
}

func (x *attachedIndex) attached() int { return len(x.keys) }
