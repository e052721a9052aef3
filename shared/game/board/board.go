package board

import (
	"math"
	"sort"

	"tidewar/shared/game/types"
)

// Hex layout spacing in world units.
const (
	ColStep = 1.5
)

var RowStep = math.Sqrt(3)

type Coord struct{ X, Y int }

// Board is the static node graph of one match. It is stored in Blue framing.
type Board struct {
	Cols, Rows int

	nodes  map[Coord]*Node
	sorted []*Node
}

// ValidHex reports whether (x, y) exists in an offset-column layout where odd
// columns have one row fewer than even columns.
func ValidHex(cols, rows, x, y int) bool {
	if x < 0 || x >= cols || y < 0 {
		return false
	}
	if x%2 == 1 {
		return y < rows-1
	}
	return y < rows
}

// HexPos is the world position of a hex cell.
func HexPos(x, y int) Point {
	z := float64(y) * RowStep
	if x%2 == 1 {
		z += RowStep / 2
	}
	return Point{X: float64(x) * ColStep, Z: z}
}

// NewHex builds the offset-column layout used by matches.
func NewHex(cols, rows int) *Board {
	b := NewBuilder()
	for x := 0; x < cols; x++ {
		for y := 0; y < rows; y++ {
			if ValidHex(cols, rows, x, y) {
				b.Add(x, y, HexPos(x, y))
			}
		}
	}
	for _, n := range b.nodes {
		for _, c := range hexNeighbors(n.X, n.Y) {
			if o, ok := b.nodes[c]; ok {
				b.Link(n, o)
			}
		}
	}
	board := b.Build()
	board.Cols, board.Rows = cols, rows
	return board
}

func hexNeighbors(x, y int) []Coord {
	out := []Coord{{x, y - 1}, {x, y + 1}}
	if x%2 == 0 {
		return append(out, Coord{x - 1, y - 1}, Coord{x - 1, y}, Coord{x + 1, y - 1}, Coord{x + 1, y})
	}
	return append(out, Coord{x - 1, y}, Coord{x - 1, y + 1}, Coord{x + 1, y}, Coord{x + 1, y + 1})
}

// Builder assembles arbitrary node graphs.
type Builder struct {
	nodes map[Coord]*Node
}

func NewBuilder() *Builder { return &Builder{nodes: map[Coord]*Node{}} }

func (b *Builder) Add(x, y int, pos Point) *Node {
	n := &Node{X: x, Y: y, Pos: pos, Links: map[*Node]Connection{}}
	b.nodes[Coord{x, y}] = n
	return n
}

// Link connects a and c in both directions.
func (b *Builder) Link(a, c *Node) {
	if a == c {
		return
	}
	a.link(c)
	c.link(a)
}

func (b *Builder) Build() *Board {
	board := &Board{nodes: b.nodes}
	for c, n := range b.nodes {
		board.sorted = append(board.sorted, n)
		if c.X+1 > board.Cols {
			board.Cols = c.X + 1
		}
		if c.Y+1 > board.Rows {
			board.Rows = c.Y + 1
		}
	}
	sort.Slice(board.sorted, func(i, j int) bool { return less(board.sorted[i], board.sorted[j]) })
	return board
}

func (b *Board) Node(x, y int) *Node { return b.nodes[Coord{x, y}] }

// Nodes returns every node ordered by (X, Y).
func (b *Board) Nodes() []*Node { return b.sorted }

func (b *Board) Adjacent(a, c *Node) bool {
	if a == nil || c == nil {
		return false
	}
	_, ok := a.Links[c]
	return ok
}

// CommonNeighbors returns nodes adjacent to both a and c, ordered by (X, Y).
func (b *Board) CommonNeighbors(a, c *Node) []*Node {
	var out []*Node
	for _, n := range a.Neighbors() {
		if n != c && b.Adjacent(n, c) {
			out = append(out, n)
		}
	}
	return out
}

func (b *Board) SpawnColumn(side types.Side) int {
	if side == types.SideRed {
		return b.Cols - 1
	}
	return 0
}

// InRegion reports whether n lies in region as seen from side. The middle
// column belongs to neither half.
func (b *Board) InRegion(n *Node, region types.DropRegion, side types.Side) bool {
	mid := b.Cols / 2
	ownHalf := func(s types.Side) bool {
		if s == types.SideRed {
			return n.X > mid
		}
		return n.X < mid
	}
	switch region {
	case types.RegionWholeMap:
		return true
	case types.RegionOwnHalf:
		return ownHalf(side)
	case types.RegionEnemyHalf:
		return ownHalf(side.Opponent())
	case types.RegionSpawnColumn:
		return n.X == b.SpawnColumn(side)
	}
	return false
}

// NearestNode returns the node of region closest to p, or nil when the
// region is empty. p is in Blue framing. Distances and ties are taken in
// side's own framing, ties going to the lowest (X, Y) as that side sees
// the board, so both sides get mirrored answers.
func (b *Board) NearestNode(p Point, region types.DropRegion, side types.Side) *Node {
	return b.NearestWhere(p, region, side, nil)
}

// NearestWhere is NearestNode restricted to nodes accepted by ok.
func (b *Board) NearestWhere(p Point, region types.DropRegion, side types.Side, ok func(*Node) bool) *Node {
	const tieEps = 1e-9
	local := b.Framed(p, side)
	var best *Node
	var bestAt Coord
	bestD := math.Inf(1)
	for _, n := range b.sorted {
		if !b.InRegion(n, region, side) || (ok != nil && !ok(n)) {
			continue
		}
		pos, at := n.Pos, Coord{n.X, n.Y}
		if side == types.SideRed {
			pos, at.X = b.Mirror(pos), b.Cols-1-n.X
		}
		d := pos.Dist(local)
		switch {
		case d < bestD-tieEps:
		case d <= bestD+tieEps && (at.X < bestAt.X || at.X == bestAt.X && at.Y < bestAt.Y):
		default:
			continue
		}
		best, bestD, bestAt = n, d, at
	}
	return best
}

// RegionNodes lists the nodes of region for side, ordered by (X, Y).
func (b *Board) RegionNodes(region types.DropRegion, side types.Side) []*Node {
	var out []*Node
	for _, n := range b.sorted {
		if b.InRegion(n, region, side) {
			out = append(out, n)
		}
	}
	return out
}

// Width is the world-space X extent between the outer columns.
func (b *Board) Width() float64 { return float64(b.Cols-1) * ColStep }

// Mirror maps a point between Blue and Red framings.
func (b *Board) Mirror(p Point) Point { return Point{X: b.Width() - p.X, Z: p.Z} }

// MirrorNode maps a node to its counterpart across the board.
func (b *Board) MirrorNode(n *Node) *Node { return b.Node(b.Cols-1-n.X, n.Y) }

// Framed converts a point given in side's framing into Blue framing.
func (b *Board) Framed(p Point, side types.Side) Point {
	if side == types.SideRed {
		return b.Mirror(p)
	}
	return p
}
