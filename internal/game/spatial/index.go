// Package spatial provides a uniform-grid bucket index for proximity queries over positioned entities.
package spatial

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cory-johannsen/tactics/internal/game/battlefield"
)

// Entry is an indexed entity.
type Entry struct {
	ID       string
	Position battlefield.Position
}

type cellKey struct{ cx, cy int }

// Index buckets entities into square cells of CellSize grid units.
//
// Invariant: every indexed ID appears in exactly one cell bucket, the one
// recorded for it in where.
//
// An Index is not safe for concurrent use; the encounter that owns it serialises access.
type Index struct {
	cellSize int
	cells    map[cellKey][]Entry
	where    map[string]cellKey
	pos      map[string]battlefield.Position
}

// New creates an empty index.
//
// Precondition: cellSize > 0.
func New(cellSize int) *Index {
	if cellSize <= 0 {
		panic(fmt.Sprintf("spatial.New: precondition violated: cellSize must be > 0, got %d", cellSize))
	}
	return &Index{
		cellSize: cellSize,
		cells:    make(map[cellKey][]Entry),
		where:    make(map[string]cellKey),
		pos:      make(map[string]battlefield.Position),
	}
}

// CellSize returns the bucket edge length in grid units.
func (ix *Index) CellSize() int { return ix.cellSize }

// Len returns the number of indexed entities.
func (ix *Index) Len() int { return len(ix.where) }

// Contains reports whether id is indexed.
func (ix *Index) Contains(id string) bool {
	_, ok := ix.where[id]
	return ok
}

// PositionOf returns the indexed position of id.
func (ix *Index) PositionOf(id string) (battlefield.Position, bool) {
	p, ok := ix.pos[id]
	return p, ok
}

func (ix *Index) keyFor(p battlefield.Position) cellKey {
	return cellKey{floorDiv(p.X, ix.cellSize), floorDiv(p.Y, ix.cellSize)}
}

// Add inserts id at p.
//
// Precondition: id is not already indexed. A double insert is a programming
// error and panics.
func (ix *Index) Add(id string, p battlefield.Position) {
	if _, ok := ix.where[id]; ok {
		panic(fmt.Sprintf("spatial.Index.Add: invariant violated: %q already indexed", id))
	}
	k := ix.keyFor(p)
	ix.cells[k] = append(ix.cells[k], Entry{ID: id, Position: p})
	ix.where[id] = k
	ix.pos[id] = p
}

// Remove deletes id from the index. Removing an unknown id is a no-op.
func (ix *Index) Remove(id string) {
	k, ok := ix.where[id]
	if !ok {
		return
	}
	ix.dropFromCell(k, id)
	delete(ix.where, id)
	delete(ix.pos, id)
}

// Update moves id to p. When p falls in the same cell the bucket entry is
// rewritten in place; otherwise the entry is removed from the old cell before
// being inserted into the new one. Unknown ids are added.
func (ix *Index) Update(id string, p battlefield.Position) {
	old, ok := ix.where[id]
	if !ok {
		ix.Add(id, p)
		return
	}
	ix.pos[id] = p
	k := ix.keyFor(p)
	if k == old {
		bucket := ix.cells[k]
		for i := range bucket {
			if bucket[i].ID == id {
				bucket[i].Position = p
				break
			}
		}
		return
	}
	ix.dropFromCell(old, id)
	ix.cells[k] = append(ix.cells[k], Entry{ID: id, Position: p})
	ix.where[id] = k
}

func (ix *Index) dropFromCell(k cellKey, id string) {
	bucket := ix.cells[k]
	for i := range bucket {
		if bucket[i].ID == id {
			bucket = slices.Delete(bucket, i, i+1)
			break
		}
	}
	if len(bucket) == 0 {
		delete(ix.cells, k)
		return
	}
	ix.cells[k] = bucket
}

// QueryRadius returns every entity whose Euclidean distance to center is at
// most radius, ordered by ID. Only cells whose bounds intersect the query
// circle are visited. A negative radius yields nil.
func (ix *Index) QueryRadius(center battlefield.Position, radius float64) []Entry {
	if radius < 0 {
		return nil
	}
	minX := floorDiv(int(math.Floor(float64(center.X)-radius)), ix.cellSize)
	maxX := floorDiv(int(math.Ceil(float64(center.X)+radius)), ix.cellSize)
	minY := floorDiv(int(math.Floor(float64(center.Y)-radius)), ix.cellSize)
	maxY := floorDiv(int(math.Ceil(float64(center.Y)+radius)), ix.cellSize)

	seen := make(map[string]bool)
	var out []Entry
	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			if !ix.cellIntersects(cx, cy, center, radius) {
				continue
			}
			for _, e := range ix.cells[cellKey{cx, cy}] {
				if seen[e.ID] {
					continue
				}
				if e.Position.Distance(center) <= radius {
					seen[e.ID] = true
					out = append(out, e)
				}
			}
		}
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// cellIntersects reports whether the cell's integer coordinate range comes
// within radius of center.
func (ix *Index) cellIntersects(cx, cy int, center battlefield.Position, radius float64) bool {
	lo := battlefield.Position{X: cx * ix.cellSize, Y: cy * ix.cellSize}
	hi := battlefield.Position{X: lo.X + ix.cellSize - 1, Y: lo.Y + ix.cellSize - 1}
	nearest := battlefield.Position{X: clamp(center.X, lo.X, hi.X), Y: clamp(center.Y, lo.Y, hi.Y)}
	return nearest.Distance(center) <= radius
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
