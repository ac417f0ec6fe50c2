package ai

// hateEntry tracks accumulated hate toward one actor. seq records the most
// recent contribution, so ties break toward the latest damager.
type hateEntry struct {
	id     int32
	amount int
	seq    uint64
}

// HateList is an ordered set of candidate targets for one instance.
// Not safe for concurrent use; owned by the instance.
type HateList struct {
	entries []hateEntry
	seq     uint64
}

// Add records hate toward an actor, creating or bumping its entry.
func (h *HateList) Add(id int32, amount int) {
	if id == 0 {
		return
	}
	h.seq++
	for i := range h.entries {
		if h.entries[i].id == id {
			h.entries[i].amount += amount
			h.entries[i].seq = h.seq
			return
		}
	}
	h.entries = append(h.entries, hateEntry{id: id, amount: amount, seq: h.seq})
}

// Remove drops an actor from the list.
func (h *HateList) Remove(id int32) {
	for i := range h.entries {
		if h.entries[i].id == id {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			return
		}
	}
}

// Top returns the actor with the highest hate, most recent damager winning
// ties. Returns 0 when empty.
func (h *HateList) Top() int32 {
	best := -1
	for i := range h.entries {
		if best < 0 ||
			h.entries[i].amount > h.entries[best].amount ||
			(h.entries[i].amount == h.entries[best].amount && h.entries[i].seq > h.entries[best].seq) {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return h.entries[best].id
}

// Contains reports whether the actor already has an entry.
func (h *HateList) Contains(id int32) bool {
	for i := range h.entries {
		if h.entries[i].id == id {
			return true
		}
	}
	return false
}

// Clear empties the list.
func (h *HateList) Clear() {
	h.entries = h.entries[:0]
}

// Empty reports whether no hate is recorded.
func (h *HateList) Empty() bool {
	return len(h.entries) == 0
}

// Len returns the number of tracked actors.
func (h *HateList) Len() int {
	return len(h.entries)
}
