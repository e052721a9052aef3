package board

import (
	"fmt"
	"math"
	"sort"
)

// Point is a position on the board plane. Z is the depth axis; height is
// never part of board math.
type Point struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

func (p Point) Dist(o Point) float64 { return math.Hypot(p.X-o.X, p.Z-o.Z) }

// Angle is the heading from p towards o, in radians.
func (p Point) Angle(o Point) float64 { return math.Atan2(o.Z-p.Z, o.X-p.X) }

// Occupant is whatever stands on a node. The unit registry is the only
// writer of node occupancy.
type Occupant interface {
	Alive() bool
}

// Connection describes the link from a node to one neighbor.
type Connection struct {
	Dist  float64
	Angle float64
}

type Node struct {
	X, Y  int
	Pos   Point
	Links map[*Node]Connection

	occupant Occupant
	nbrs     []*Node
}

func (n *Node) String() string { return fmt.Sprintf("(%d,%d)", n.X, n.Y) }

func (n *Node) Occupied() bool { return n.occupant != nil }

func (n *Node) Occupant() Occupant { return n.occupant }

// SetOccupant places o on n. Placing onto a node held by someone else is a
// desync and panics.
func (n *Node) SetOccupant(o Occupant) {
	if o == nil {
		panic("board: nil occupant")
	}
	if n.occupant != nil && n.occupant != o {
		panic(fmt.Sprintf("board: node %s already occupied", n))
	}
	n.occupant = o
}

func (n *Node) Clear() { n.occupant = nil }

// Neighbors returns adjacent nodes ordered by (X, Y).
func (n *Node) Neighbors() []*Node { return n.nbrs }

func (n *Node) link(o *Node) {
	if _, ok := n.Links[o]; ok {
		return
	}
	n.Links[o] = Connection{Dist: n.Pos.Dist(o.Pos), Angle: n.Pos.Angle(o.Pos)}
	n.nbrs = append(n.nbrs, o)
	sort.Slice(n.nbrs, func(i, j int) bool { return less(n.nbrs[i], n.nbrs[j]) })
}

func less(a, b *Node) bool {
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}
