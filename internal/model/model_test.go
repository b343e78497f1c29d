package model

import "testing"

func TestEventKeyDistinguishesIndex(t *testing.T) {
	plain := Event{Type: "pose"}
	idx0 := Event{Type: "pose", Index: 0, HasIndex: true}
	idx1 := Event{Type: "pose", Index: 1, HasIndex: true}

	if plain.Key() == idx0.Key() {
		t.Error("indexless event should not share a key with index 0")
	}
	if idx0.Key() == idx1.Key() {
		t.Error("different indexes should have different keys")
	}
	if idx1.Key() != (Event{Type: "pose", Index: 1, HasIndex: true}).Key() {
		t.Error("same type and index should share a key")
	}
	if plain.Key() == (Event{Type: "move"}).Key() {
		t.Error("different types should have different keys")
	}
}

func TestEventEnd(t *testing.T) {
	if got := (Event{Time: 1.5}).End(); got != 1.5 {
		t.Errorf("instantaneous End() = %v, want 1.5", got)
	}
	if got := (Event{Time: 1.5, Duration: 0.5}).End(); got != 2.0 {
		t.Errorf("interval End() = %v, want 2.0", got)
	}
}

func TestIdentityValid(t *testing.T) {
	if (Identity{}).Valid() {
		t.Error("zero identity should not be valid")
	}
	if !(Identity{ID: "u1", Anonymous: true}).Valid() {
		t.Error("anonymous identity with id should be valid")
	}
}
