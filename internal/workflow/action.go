package workflow

import "strings"

// Action represents a reviewer decision submitted against a request.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// IsValid reports whether the action is one of the defined decisions.
func (a Action) IsValid() bool {
	return a == ActionApprove || a == ActionReject
}

// ParseAction normalises raw client input into an Action.
func ParseAction(raw string) (Action, bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(raw)))
	return a, a.IsValid()
}
