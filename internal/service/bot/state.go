package bot

// State is the position of the control loop in the reply pipeline.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateMessageDetected
	StatePolicyCheck
	StateResponding
	StateDelaying
	StateDispatching
	StateLogging
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCapturing:
		return "CAPTURING"
	case StateMessageDetected:
		return "MESSAGE_DETECTED"
	case StatePolicyCheck:
		return "POLICY_CHECK"
	case StateResponding:
		return "RESPONDING"
	case StateDelaying:
		return "DELAYING"
	case StateDispatching:
		return "DISPATCHING"
	case StateLogging:
		return "LOGGING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Outcome summarises one pipeline cycle.
type Outcome string

const (
	OutcomeNoMessage      Outcome = "no_message"
	OutcomeDetectFailed   Outcome = "detect_failed"
	OutcomeDenied         Outcome = "denied"
	OutcomeReplied        Outcome = "replied"
	OutcomeDryRun         Outcome = "dry_run"
	OutcomeUnanswered     Outcome = "unanswered"
	OutcomeDispatchFailed Outcome = "dispatch_failed"
	OutcomeStoreFailed    Outcome = "store_failed"
	OutcomeAborted        Outcome = "aborted"
)
