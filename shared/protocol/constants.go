package protocol

const (
	// GameVersion is checked at login; peers on different versions may not
	// share a match.
	GameVersion = "1.4.0"

	// SendBuffer holds a relay socket's outbound frames; sized for the
	// commits of several host ticks arriving at once.
	SendBuffer = 1024
	RecvBuffer = 128
)
