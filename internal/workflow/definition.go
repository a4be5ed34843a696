package workflow

import (
	"fmt"

	"github.com/noah-isme/provadm-api/internal/models"
	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
)

// Input carries the free-text fields accompanying a decision; guards
// validate them before a transition is admitted.
type Input struct {
	Reason string
	Note   string
}

// GuardFunc validates decision input for a transition. A non-nil error
// blocks the transition.
type GuardFunc func(in Input) error

// Transition describes one admissible (status, action) edge.
type Transition struct {
	To           models.RequestStatus
	RequiredTier models.OrgTier
	RequiredRank int
	Guard        GuardFunc
}

// Definition is a per-request-type transition table. It is built once at
// startup and read-only afterwards.
type Definition struct {
	initial     models.RequestStatus
	transitions map[models.RequestStatus]map[Action]Transition
}

// NewDefinition creates an empty definition starting at the given status.
func NewDefinition(initial models.RequestStatus) *Definition {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}
	return &Definition{
		initial:     initial,
		transitions: make(map[models.RequestStatus]map[Action]Transition),
	}
}

// Initial returns the status newly created requests start in.
func (d *Definition) Initial() models.RequestStatus {
	return d.initial
}

// Permit registers a transition for (from, action). Registering a
// transition out of a terminal status or to an unknown status panics;
// tables are wired at startup and a bad edge is a programming error.
func (d *Definition) Permit(from models.RequestStatus, action Action, tr Transition) *Definition {
	if !from.IsValid() || from.IsTerminal() {
		panic(fmt.Sprintf("cannot permit transition out of %s", from))
	}
	if !tr.To.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", tr.To))
	}
	edges, ok := d.transitions[from]
	if !ok {
		edges = make(map[Action]Transition)
		d.transitions[from] = edges
	}
	edges[action] = tr
	return d
}

// Lookup returns the transition registered for (from, action) without
// evaluating guards.
func (d *Definition) Lookup(from models.RequestStatus, action Action) (Transition, error) {
	if !action.IsValid() {
		return Transition{}, appErrors.Clone(appErrors.ErrInvalidAction, fmt.Sprintf("unknown action %q", action))
	}
	edges, ok := d.transitions[from]
	if !ok {
		return Transition{}, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("no transitions defined from status %s", from))
	}
	tr, ok := edges[action]
	if !ok {
		return Transition{}, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("action %s is not permitted from status %s", action, from))
	}
	return tr, nil
}

// Next validates the action against the current status and its guard,
// returning the admitted transition. Terminal statuses always yield an
// invalid-transition error, never a silent no-op.
func (d *Definition) Next(from models.RequestStatus, action Action, in Input) (Transition, error) {
	tr, err := d.Lookup(from, action)
	if err != nil {
		return Transition{}, err
	}
	if tr.Guard != nil {
		if err := tr.Guard(in); err != nil {
			return Transition{}, err
		}
	}
	return tr, nil
}

// ReviewerTier returns the tier designated as the active reviewer for
// the given status. The second return is false for terminal statuses.
func (d *Definition) ReviewerTier(from models.RequestStatus) (models.OrgTier, bool) {
	edges, ok := d.transitions[from]
	if !ok {
		return "", false
	}
	for _, tr := range edges {
		return tr.RequiredTier, true
	}
	return "", false
}
