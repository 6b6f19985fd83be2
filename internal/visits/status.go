package visits

import "github.com/visitdesk/visitdesk/internal/models"

// Action names a lifecycle transition request.
type Action string

const (
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionReApprove Action = "re-approve"
	ActionCheckIn   Action = "check-in"
	ActionCheckOut  Action = "check-out"
)

// Event names the notification decision emitted by a successful transition.
type Event string

const (
	EventApproved   Event = "visit.approved"
	EventRejected   Event = "visit.rejected"
	EventCheckedIn  Event = "visit.checked_in"
	EventCheckedOut Event = "visit.checked_out"
)

// Transition describes one row of the fixed transition table: the states an
// action may be requested from, the resulting state, the timestamp column the
// transition writes, and the notification event it emits.
type Transition struct {
	From           []models.VisitStatus
	To             models.VisitStatus
	TimestampField string
	Event          Event
}

// The transition set is fixed and specific to this domain; there is no
// mechanism for registering new states or actions at runtime.
var transitionTable = map[Action]Transition{
	ActionApprove: {
		From:           []models.VisitStatus{models.StatusPendingApproval},
		To:             models.StatusApproved,
		TimestampField: "approved_at",
		Event:          EventApproved,
	},
	// Reject is legal both before approval and after it: a host may revoke
	// an earlier approval at any point before the visitor checks in.
	ActionReject: {
		From:           []models.VisitStatus{models.StatusPendingApproval, models.StatusApproved},
		To:             models.StatusRejected,
		TimestampField: "rejected_at",
		Event:          EventRejected,
	},
	ActionReApprove: {
		From:           []models.VisitStatus{models.StatusRejected},
		To:             models.StatusApproved,
		TimestampField: "approved_at",
		Event:          EventApproved,
	},
	ActionCheckIn: {
		From:           []models.VisitStatus{models.StatusPreRegistered, models.StatusApproved},
		To:             models.StatusCheckedIn,
		TimestampField: "check_in_at",
		Event:          EventCheckedIn,
	},
	ActionCheckOut: {
		From:           []models.VisitStatus{models.StatusCheckedIn},
		To:             models.StatusCheckedOut,
		TimestampField: "check_out_at",
		Event:          EventCheckedOut,
	},
}

// Lookup resolves the transition row for an action requested from the given
// state. The second return is false when the (state, action) pair is not in
// the table; callers surface that as an invalid-transition error, never as a
// silent no-op.
func Lookup(action Action, from models.VisitStatus) (Transition, bool) {
	row, ok := transitionTable[action]
	if !ok {
		return Transition{}, false
	}
	for _, status := range row.From {
		if status == from {
			return row, true
		}
	}
	return Transition{}, false
}
