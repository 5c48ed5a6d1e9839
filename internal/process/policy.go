package process

// Decision is what to do after the child exits on its own.
type Decision int

const (
	DecisionRestart Decision = iota
	DecisionTerminate
)

func (d Decision) String() string {
	if d == DecisionTerminate {
		return "terminate"
	}
	return "restart"
}

// Decide applies the exit policy: failures always restart, clean exits restart
// unless onlyNonZeroExit is set, in which case supervision ends.
func Decide(success, onlyNonZeroExit bool) Decision {
	if success && onlyNonZeroExit {
		return DecisionTerminate
	}
	return DecisionRestart
}
