package pipeline

// State is a node of the orchestration graph.
type State int

const (
	StateCheckAccess State = iota
	StatePlan
	StateClarify
	StateExecute
	StateReason
	StateFinalize
	StateEnd
)

// MaxHops is the longest path through the graph, counted in visited nodes.
const MaxHops = 6

func (s State) String() string {
	switch s {
	case StateCheckAccess:
		return "check_access"
	case StatePlan:
		return "plan"
	case StateClarify:
		return "clarify"
	case StateExecute:
		return "execute"
	case StateReason:
		return "reason"
	case StateFinalize:
		return "finalize"
	case StateEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Next is the graph's transition function. It reads the state produced by
// the node just run and never mutates it.
//
//	check_access -> plan | end
//	plan         -> clarify | execute
//	clarify      -> end
//	execute      -> reason | end
//	reason       -> finalize
//	finalize     -> end
func Next(current State, s *ConversationState) State {
	switch current {
	case StateCheckAccess:
		if s.AccessGranted {
			return StatePlan
		}
		return StateEnd
	case StatePlan:
		if s.Plan != nil && len(s.Plan.Clarifications) > 0 {
			return StateClarify
		}
		return StateExecute
	case StateExecute:
		if s.DBResults != nil {
			return StateReason
		}
		return StateEnd
	case StateReason:
		return StateFinalize
	default:
		return StateEnd
	}
}
