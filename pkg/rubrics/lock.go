package rubrics

// LockState is the editability of a row at the moment it is read.
type LockState int

const (
	StateUnlocked LockState = iota
	StateLockedManual
	StateLockedByAutoTest
)

func (s LockState) String() string {
	switch s {
	case StateUnlocked:
		return "unlocked"
	case StateLockedManual:
		return "locked"
	case StateLockedByAutoTest:
		return "auto_test"
	default:
		return "unknown"
	}
}

const (
	MsgLockedManual       = "This category is locked and cannot be changed manually."
	MsgAutoTestNotStarted = "Waiting for automated test run."
	MsgAutoTestRunning    = "Automated test run in progress; value will update automatically."
	MsgAutoTestFinished   = "Value set by automated test result; cannot be changed manually."
)

// Policy decides per row whether a grader may edit it. Nothing is cached:
// every call looks at the row and the current overlay.
type Policy struct {
	CanEdit bool
	Overlay Overlay
}

// State classifies row.
func (p Policy) State(row *Row) LockState {
	switch row.Lock {
	case LockManual:
		return StateLockedManual
	case LockAutoTest:
		return StateLockedByAutoTest
	default:
		return StateUnlocked
	}
}

// Editable reports whether manual edits to row are accepted.
func (p Policy) Editable(row *Row) bool {
	return p.CanEdit && p.State(row) == StateUnlocked
}

// Message is the explanation shown next to a locked row, empty when unlocked.
func (p Policy) Message(row *Row) string {
	switch p.State(row) {
	case StateLockedManual:
		return MsgLockedManual
	case StateLockedByAutoTest:
		switch p.Overlay.RunState() {
		case RunRunning:
			return MsgAutoTestRunning
		case RunFinished:
			return MsgAutoTestFinished
		default:
			return MsgAutoTestNotStarted
		}
	default:
		return ""
	}
}
