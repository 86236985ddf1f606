package engine

// EventKind names an advisory side-channel event for renderers and UIs
type EventKind string

const (
	EventPop       EventKind = "pop"
	EventFall      EventKind = "fall"
	EventJunk      EventKind = "junk"
	EventLevelUp   EventKind = "level_up"
	EventSpellCast EventKind = "spell_cast"
	EventGameOver  EventKind = "game_over"
)

// Event is a plain serializable notification. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind   EventKind `json:"kind" msgpack:"kind"`
	Player PlayerID  `json:"player,omitempty" msgpack:"player,omitempty"`
	X      float64   `json:"x,omitempty" msgpack:"x,omitempty"`
	Y      float64   `json:"y,omitempty" msgpack:"y,omitempty"`
	Color  ColorID   `json:"color,omitempty" msgpack:"color,omitempty"`
	Count  int       `json:"count,omitempty" msgpack:"count,omitempty"`
	Level  int       `json:"level,omitempty" msgpack:"level,omitempty"`
	Spell  SpellKind `json:"spell,omitempty" msgpack:"spell,omitempty"`
	Target PlayerID  `json:"target,omitempty" msgpack:"target,omitempty"`
}

// FallingBubble describes a detached bubble for the falling animation
type FallingBubble struct {
	Bubble Bubble  `json:"bubble" msgpack:"bubble"`
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	VX     float64 `json:"vx" msgpack:"vx"`
}

func popEvent(b *Bubble, radius float64) Event {
	x, y := CellCenter(b.Row, b.Col, radius)
	return Event{Kind: EventPop, X: x, Y: y, Color: b.Color}
}
