package conversation

type State int32

const (
	StateIdle State = iota
	StatePolling
	StateDrafting
	StateWaiting
	StateReconciling
	StateDispatching
	StateStopped
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StatePolling:     "polling",
	StateDrafting:    "drafting",
	StateWaiting:     "waiting",
	StateReconciling: "reconciling",
	StateDispatching: "dispatching",
	StateStopped:     "stopped",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
