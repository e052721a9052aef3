package board

import (
	"testing"

	"tidewar/shared/game/types"
)

func TestHexColumnParity(t *testing.T) {
	b := NewHex(17, 9)
	if b.Node(0, 8) == nil {
		t.Fatalf("even column should have row 8")
	}
	if b.Node(1, 8) != nil {
		t.Fatalf("odd column must not have row 8")
	}
	want := 9*9 + 8*8
	if got := len(b.Nodes()); got != want {
		t.Fatalf("node count = %d, want %d", got, want)
	}
}

func TestHexAdjacencySymmetricAndBounded(t *testing.T) {
	b := NewHex(7, 5)
	for _, n := range b.Nodes() {
		if len(n.Neighbors()) > 6 {
			t.Fatalf("%s has %d neighbors", n, len(n.Neighbors()))
		}
		for _, o := range n.Neighbors() {
			if !b.Adjacent(o, n) {
				t.Fatalf("adjacency %s->%s not symmetric", n, o)
			}
			if d := n.Pos.Dist(o.Pos); d > RowStep+1e-9 {
				t.Fatalf("neighbor %s->%s too far: %v", n, o, d)
			}
		}
	}
	inner := b.Node(2, 2)
	if len(inner.Neighbors()) != 6 {
		t.Fatalf("inner node has %d neighbors, want 6", len(inner.Neighbors()))
	}
	if !b.Adjacent(b.Node(2, 2), b.Node(1, 1)) || !b.Adjacent(b.Node(2, 2), b.Node(3, 2)) {
		t.Fatalf("even column offsets wrong")
	}
	if !b.Adjacent(b.Node(3, 1), b.Node(2, 2)) || b.Adjacent(b.Node(3, 1), b.Node(2, 0)) {
		t.Fatalf("odd column offsets wrong")
	}
}

func TestRegionsSplitAtMiddleColumn(t *testing.T) {
	b := NewHex(17, 9)
	mid := b.Node(8, 4)
	for _, side := range []types.Side{types.SideBlue, types.SideRed} {
		if b.InRegion(mid, types.RegionOwnHalf, side) || b.InRegion(mid, types.RegionEnemyHalf, side) {
			t.Fatalf("middle column must belong to no half")
		}
	}
	if !b.InRegion(b.Node(3, 3), types.RegionOwnHalf, types.SideBlue) {
		t.Fatalf("x=3 should be Blue's half")
	}
	if !b.InRegion(b.Node(3, 3), types.RegionEnemyHalf, types.SideRed) {
		t.Fatalf("x=3 should be Red's enemy half")
	}
	for _, n := range b.RegionNodes(types.RegionSpawnColumn, types.SideRed) {
		if n.X != 16 {
			t.Fatalf("red spawn column contains %s", n)
		}
	}
}

func TestNearestNodeRespectsRegion(t *testing.T) {
	b := NewHex(17, 9)
	far := HexPos(14, 4)
	n := b.NearestNode(far, types.RegionOwnHalf, types.SideBlue)
	if n == nil || n.X != 7 {
		t.Fatalf("nearest own-half node to enemy point = %v, want column 7", n)
	}
	n = b.NearestNode(far, types.RegionSpawnColumn, types.SideBlue)
	if n == nil || n.X != 0 || n.Y != 4 {
		t.Fatalf("spawn column nearest = %v, want (0,4)", n)
	}
	if got := b.NearestNode(far, types.RegionWholeMap, types.SideRed); got != b.Node(14, 4) {
		t.Fatalf("whole map nearest = %v", got)
	}
}

func TestNearestNodeMirrorsBetweenSides(t *testing.T) {
	b := NewHex(17, 9)
	for _, n := range b.RegionNodes(types.RegionOwnHalf, types.SideBlue) {
		p := Point{X: n.Pos.X + 0.1, Z: n.Pos.Z + 0.05}
		blue := b.NearestNode(p, types.RegionOwnHalf, types.SideBlue)
		red := b.NearestNode(b.Mirror(p), types.RegionOwnHalf, types.SideRed)
		if blue != n || red != b.MirrorNode(n) {
			t.Fatalf("mirror mismatch at %s: blue=%v red=%v", n, blue, red)
		}
	}
}

func TestNearestNodeBreaksTiesInOwnFraming(t *testing.T) {
	b := NewHex(17, 9)
	// equidistant from (0,0) and (1,0) in the requester's own framing
	local := Point{X: 0.75, Z: RowStep / 4}
	blue := b.NearestNode(local, types.RegionOwnHalf, types.SideBlue)
	red := b.NearestNode(b.Framed(local, types.SideRed), types.RegionOwnHalf, types.SideRed)
	if blue != b.Node(0, 0) {
		t.Fatalf("blue = %v, want (0,0)", blue)
	}
	if red != b.MirrorNode(blue) {
		t.Fatalf("red = %v, want %v", red, b.MirrorNode(blue))
	}

	// the same holds when the tie is decided among free nodes only
	free := func(n *Node) bool { return n != b.Node(0, 0) && n != b.Node(16, 0) }
	blue = b.NearestWhere(local, types.RegionOwnHalf, types.SideBlue, free)
	red = b.NearestWhere(b.Framed(local, types.SideRed), types.RegionOwnHalf, types.SideRed, free)
	if blue != b.Node(1, 0) || red != b.MirrorNode(blue) {
		t.Fatalf("free nodes: blue=%v red=%v", blue, red)
	}
}

func TestBuilderGraph(t *testing.T) {
	bl := NewBuilder()
	a := bl.Add(0, 0, Point{X: 0})
	c := bl.Add(1, 0, Point{X: 1})
	d := bl.Add(2, 0, Point{X: 2})
	bl.Link(a, c)
	bl.Link(c, d)
	b := bl.Build()
	if b.Adjacent(a, d) {
		t.Fatalf("a and d are not linked")
	}
	if cn := b.CommonNeighbors(a, d); len(cn) != 1 || cn[0] != c {
		t.Fatalf("common neighbors = %v", cn)
	}
	if b.Cols != 3 || b.Rows != 1 {
		t.Fatalf("extent = %dx%d", b.Cols, b.Rows)
	}
}

type stub struct{ id int }

func (*stub) Alive() bool { return true }

func TestOccupancyPanicsOnDoubleBooking(t *testing.T) {
	n := NewHex(3, 2).Node(0, 0)
	n.SetOccupant(&stub{id: 1})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	n.SetOccupant(&stub{id: 2})
}
