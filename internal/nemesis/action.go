// Package nemesis applies and clears fault-injection actions against the
// nodes under test.
package nemesis

import "fmt"

// Kind enumerates the closed set of fault kinds. Adding a fault means adding
// a variant here plus its apply/clear arms in the controller.
type Kind uint8

const (
	// NoFailure is the identity action: apply and clear are no-ops. Used as
	// a control scenario.
	NoFailure Kind = iota
	// StopNode shuts a node down gracefully and leaves it down.
	StopNode
	// RestartNode shuts a node down gracefully; clearing starts it again.
	RestartNode
	// CrashRecoverNode kills a node abruptly, with no shutdown hook, risking
	// in-doubt two-phase transactions; clearing starts it again.
	CrashRecoverNode
	// SingleNodePartition isolates a node from its peer and the referee
	// simultaneously, in one network action.
	SingleNodePartition
)

// Action is one fault-injection action against a named node.
type Action struct {
	Kind Kind
	Node string
}

// None returns the identity action.
func None() Action {
	return Action{Kind: NoFailure}
}

// Stop returns a graceful stop of node with no automatic restart.
func Stop(node string) Action {
	return Action{Kind: StopNode, Node: node}
}

// Restart returns a graceful stop of node that is started again on clear.
func Restart(node string) Action {
	return Action{Kind: RestartNode, Node: node}
}

// CrashRecover returns an abrupt kill of node that is started again on clear.
func CrashRecover(node string) Action {
	return Action{Kind: CrashRecoverNode, Node: node}
}

// Partition isolates node from both its peer and the referee.
func Partition(node string) Action {
	return Action{Kind: SingleNodePartition, Node: node}
}

func (a Action) String() string {
	switch a.Kind {
	case NoFailure:
		return "no-failure"
	case StopNode:
		return fmt.Sprintf("stop(%s)", a.Node)
	case RestartNode:
		return fmt.Sprintf("restart(%s)", a.Node)
	case CrashRecoverNode:
		return fmt.Sprintf("crash-recover(%s)", a.Node)
	case SingleNodePartition:
		return fmt.Sprintf("partition(%s)", a.Node)
	default:
		return "invalid"
	}
}
