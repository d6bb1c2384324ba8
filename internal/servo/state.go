package servo

// State is the servo state machine position.
type State uint8

const (
	StateInactive State = iota
	StateIdle
	StateRunning
	StateStalled
	StateHolding
)

var stateNames = [...]string{"inactive", "idle", "running", "stalled", "holding"}

func (s State) String() string {
	if int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Direction maps positive user angles to shaft rotation.
type Direction int8

const (
	Clockwise        Direction = 1
	Counterclockwise Direction = -1
)

func (d Direction) String() string {
	if d == Counterclockwise {
		return "counterclockwise"
	}
	return "clockwise"
}
