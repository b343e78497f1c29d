package model

import "time"

// Event is one timestamped record in a show's script: a puppet pose, a
// sound trigger, or any other typed interaction captured while recording.
//
// Index distinguishes independent channels of the same type (one per
// puppet). HasIndex tells the indexed zero value apart from "no index".
// A positive Duration marks an interval event; zero marks an instantaneous
// state event, of which only the latest per (Type, Index) matters during
// playback.
type Event struct {
	Time     float64        `json:"time"`
	Type     string         `json:"type"`
	Params   map[string]any `json:"params,omitempty"`
	Index    int            `json:"index,omitempty"`
	HasIndex bool           `json:"has_index,omitempty"`
	Duration float64        `json:"duration,omitempty"`
}

// Key identifies the state channel an instantaneous event belongs to.
type Key struct {
	Type  string
	Index int
}

func (e Event) Key() Key {
	idx := -1
	if e.HasIndex {
		idx = e.Index
	}
	return Key{Type: e.Type, Index: idx}
}

// End is the instant the event stops being active.
func (e Event) End() float64 {
	return e.Time + e.Duration
}

// ShowRecord is the persisted form of a show: metadata, the event log keyed
// by push ID, and the start times of its audio assets. Audio bytes live in
// blob storage, not in the record.
type ShowRecord struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	CreateTime time.Time          `json:"create_time"`
	ModifyTime time.Time          `json:"modify_time"`
	Creator    string             `json:"creator"`
	Duration   float64            `json:"duration"`
	Events     map[string]Event   `json:"events,omitempty"`
	Audio      map[string]float64 `json:"audio,omitempty"`
}

// ShowUpdate is a partial metadata write. Nil fields are left untouched.
// Stores stamp ModifyTime server-side on every update.
type ShowUpdate struct {
	Title    *string
	Duration *float64
}

// Identity is the authenticated principal acting on a show. Creator checks
// compare the acting identity's ID to the record's Creator field.
type Identity struct {
	ID        string `json:"id"`
	Anonymous bool   `json:"anonymous"`
}

func (id Identity) Valid() bool {
	return id.ID != ""
}
