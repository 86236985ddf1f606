package engine

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// rowsForm is the wire shape of a grid: rows of nullable bubbles
func (g *Grid) rowsForm() [][]*Bubble {
	out := make([][]*Bubble, g.rows)
	for r := range out {
		out[r] = make([]*Bubble, g.cols)
		copy(out[r], g.cells[r*g.cols:(r+1)*g.cols])
	}
	return out
}

// gridFromRows rebuilds a grid. Every row must have the same length.
func gridFromRows(rows [][]*Bubble) (*Grid, error) {
	if len(rows) == 0 {
		return NewGrid(0, 0), nil
	}
	cols := len(rows[0])
	g := NewGrid(len(rows), cols)
	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", r, len(row), cols, ErrGridShape)
		}
		for c, b := range row {
			if b != nil {
				g.Put(Coord{Row: r, Col: c}, *b)
			}
		}
	}
	return g, nil
}

// MarshalJSON encodes the grid as a row-major array of arrays, null for empty
func (g *Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.rowsForm())
}

// UnmarshalJSON decodes the MarshalJSON form
func (g *Grid) UnmarshalJSON(data []byte) error {
	var rows [][]*Bubble
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	out, err := gridFromRows(rows)
	if err != nil {
		return err
	}
	*g = *out
	return nil
}

var (
	_ msgpack.CustomEncoder = (*Grid)(nil)
	_ msgpack.CustomDecoder = (*Grid)(nil)
)

// EncodeMsgpack writes the same rows form as MarshalJSON
func (g *Grid) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(g.rowsForm())
}

// DecodeMsgpack reads the EncodeMsgpack form
func (g *Grid) DecodeMsgpack(dec *msgpack.Decoder) error {
	var rows [][]*Bubble
	if err := dec.Decode(&rows); err != nil {
		return err
	}
	out, err := gridFromRows(rows)
	if err != nil {
		return err
	}
	*g = *out
	return nil
}

// Doc is the replicated per-player document
type Doc struct {
	Name          string        `json:"name" msgpack:"name"`
	Team          int           `json:"team" msgpack:"team"`
	Grid          *Grid         `json:"grid" msgpack:"grid"`
	Score         int           `json:"score" msgpack:"score"`
	Level         int           `json:"level" msgpack:"level"`
	Spells        []SpellKind   `json:"spells" msgpack:"spells"`
	StatusEffects StatusEffects `json:"statusEffects" msgpack:"statusEffects"`
	AttackCounter int           `json:"attackBubbleCounter" msgpack:"attackBubbleCounter"`
	Alive         bool          `json:"isAlive" msgpack:"isAlive"`
}

// Doc snapshots the replicated fields of b. The grid is cloned.
func (b *Board) Doc() Doc {
	var g *Grid
	if b.Grid != nil {
		g = b.Grid.Clone()
	}
	return Doc{
		Name:          b.Name,
		Team:          b.Team,
		Grid:          g,
		Score:         b.Score,
		Level:         b.Level,
		Spells:        append([]SpellKind{}, b.Spells...),
		StatusEffects: b.StatusEffects.Clone(),
		AttackCounter: b.AttackCounter,
		Alive:         b.Alive,
	}
}

// ApplyDoc replaces the replicated fields of b with d. A nil grid in d leaves
// the current grid in place.
func (b *Board) ApplyDoc(d Doc) {
	b.Name = d.Name
	b.Team = d.Team
	if d.Grid != nil {
		b.Grid = d.Grid
	}
	b.Score = d.Score
	b.Level = d.Level
	b.Spells = append([]SpellKind{}, d.Spells...)
	b.StatusEffects = d.StatusEffects.Clone()
	b.AttackCounter = d.AttackCounter
	b.Alive = d.Alive
}

// EncodeDocBinary serializes d with msgpack
func EncodeDocBinary(d Doc) ([]byte, error) {
	return msgpack.Marshal(d)
}

// DecodeDocBinary is the inverse of EncodeDocBinary
func DecodeDocBinary(data []byte) (Doc, error) {
	var d Doc
	if err := msgpack.Unmarshal(data, &d); err != nil {
		return Doc{}, fmt.Errorf("decode doc: %w", err)
	}
	return d, nil
}
