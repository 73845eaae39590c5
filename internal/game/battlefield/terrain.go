package battlefield

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Terrain classifies a grid cell for movement.
type Terrain uint8

const (
	Normal Terrain = iota
	Difficult
	Water
	Wall
)

// Impassable is the move cost reported for cells that cannot be entered.
const Impassable = -1

// MoveCost returns the cost of entering a cell of this terrain, or Impassable.
func (t Terrain) MoveCost() int {
	switch t {
	case Difficult, Water:
		return 2
	case Wall:
		return Impassable
	default:
		return 1
	}
}

// BlocksSight reports whether the terrain blocks line of sight.
func (t Terrain) BlocksSight() bool { return t == Wall }

func (t Terrain) String() string {
	switch t {
	case Difficult:
		return "difficult"
	case Water:
		return "water"
	case Wall:
		return "wall"
	default:
		return "normal"
	}
}

// Map is a rectangular terrain grid. The zero value is an empty 0x0 map.
//
// Invariant: len(cells) == Width*Height.
type Map struct {
	Width  int
	Height int
	cells  []Terrain
}

// NewMap returns a width x height map of Normal terrain.
//
// Precondition: width > 0 and height > 0.
func NewMap(width, height int) *Map {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("battlefield.NewMap: precondition violated: size %dx%d", width, height))
	}
	return &Map{Width: width, Height: height, cells: make([]Terrain, width*height)}
}

// ParseMap builds a map from ASCII rows: '.' normal, ':' difficult, '~' water, '#' wall.
// All rows must be the same length.
func ParseMap(rows []string) (*Map, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("battlefield.ParseMap: no rows")
	}
	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("battlefield.ParseMap: empty first row")
	}
	m := NewMap(width, len(rows))
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("battlefield.ParseMap: row %d has width %d, want %d", y, len(row), width)
		}
		for x, ch := range row {
			var t Terrain
			switch ch {
			case '.':
				t = Normal
			case ':':
				t = Difficult
			case '~':
				t = Water
			case '#':
				t = Wall
			default:
				return nil, fmt.Errorf("battlefield.ParseMap: unknown terrain %q at (%d,%d)", ch, x, y)
			}
			m.cells[y*width+x] = t
		}
	}
	return m, nil
}

// InBounds reports whether p lies on the map.
func (m *Map) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.Width && p.Y < m.Height
}

// At returns the terrain at p. Out-of-bounds positions read as Wall.
func (m *Map) At(p Position) Terrain {
	if !m.InBounds(p) {
		return Wall
	}
	return m.cells[p.Y*m.Width+p.X]
}

// Set assigns terrain at p and returns a new map; the receiver is unchanged.
//
// Precondition: p is in bounds.
func (m *Map) Set(p Position, t Terrain) *Map {
	if !m.InBounds(p) {
		panic(fmt.Sprintf("battlefield.Map.Set: precondition violated: %s out of bounds", p))
	}
	cp := &Map{Width: m.Width, Height: m.Height, cells: append([]Terrain(nil), m.cells...)}
	cp.cells[p.Y*m.Width+p.X] = t
	return cp
}

// MoveCost returns the cost of entering p, or Impassable for walls and off-map cells.
func (m *Map) MoveCost(p Position) int {
	return m.At(p).MoveCost()
}

// String renders the map back into the ParseMap row format.
func (m *Map) String() string {
	var b strings.Builder
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			switch m.cells[y*m.Width+x] {
			case Difficult:
				b.WriteByte(':')
			case Water:
				b.WriteByte('~')
			case Wall:
				b.WriteByte('#')
			default:
				b.WriteByte('.')
			}
		}
		if y < m.Height-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// LineOfSight reports whether no wall lies strictly between from and to,
// walking the Bresenham line between their centres.
func (m *Map) LineOfSight(from, to Position) bool {
	x0, y0, x1, y1 := from.X, from.Y, to.X, to.Y
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errv := dx + dy
	for {
		if x0 == x1 && y0 == y1 {
			return true
		}
		p := Position{X: x0, Y: y0}
		if p != from && m.At(p).BlocksSight() {
			return false
		}
		e2 := 2 * errv
		if e2 >= dy {
			errv += dy
			x0 += sx
		}
		if e2 <= dx {
			errv += dx
			y0 += sy
		}
	}
}

// MarshalJSON encodes the map as its ParseMap rows.
func (m *Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Split(m.String(), "\n"))
}

// UnmarshalJSON decodes rows written by MarshalJSON.
func (m *Map) UnmarshalJSON(data []byte) error {
	var rows []string
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("battlefield.Map: %w", err)
	}
	parsed, err := ParseMap(rows)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}
