package ai

import "testing"

func TestHateTopHighestAmount(t *testing.T) {
	var h HateList
	h.Add(1, 10)
	h.Add(2, 30)
	h.Add(3, 20)
	if got := h.Top(); got != 2 {
		t.Errorf("Top() = %d, want 2", got)
	}
	h.Add(1, 25) // 1 now at 35
	if got := h.Top(); got != 1 {
		t.Errorf("Top() after bump = %d, want 1", got)
	}
}

func TestHateTieBreaksToRecent(t *testing.T) {
	var h HateList
	h.Add(1, 10)
	h.Add(2, 10)
	if got := h.Top(); got != 2 {
		t.Errorf("Top() = %d, want the most recent of tied entries", got)
	}
	h.Add(1, 0) // touch without changing the amount
	if got := h.Top(); got != 1 {
		t.Errorf("Top() after touch = %d, want 1", got)
	}
}

func TestHateRemoveAndClear(t *testing.T) {
	var h HateList
	h.Add(1, 5)
	h.Add(2, 10)
	h.Remove(2)
	if h.Contains(2) {
		t.Error("Contains(2) after Remove")
	}
	if got := h.Top(); got != 1 {
		t.Errorf("Top() = %d, want 1", got)
	}
	h.Clear()
	if !h.Empty() || h.Top() != 0 {
		t.Error("Clear left entries behind")
	}
}

func TestHateIgnoresZeroID(t *testing.T) {
	var h HateList
	h.Add(0, 100)
	if !h.Empty() {
		t.Error("Add(0) created an entry")
	}
}
