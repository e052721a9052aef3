package types

// Side is the board half a player owns. The host always plays Blue.
type Side int

const (
	SideBlue Side = iota
	SideRed
)

func (s Side) Opponent() Side {
	if s == SideBlue {
		return SideRed
	}
	return SideBlue
}

func (s Side) String() string {
	if s == SideRed {
		return "red"
	}
	return "blue"
}

func (s Side) Valid() bool { return s == SideBlue || s == SideRed }
