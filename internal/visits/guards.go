package visits

import "github.com/visitdesk/visitdesk/internal/models"

// Actor identifies who is requesting a transition. Authentication happened
// upstream; the engine only needs role and, for host users, the host record
// they belong to.
type Actor struct {
	ID     string
	Role   models.Role
	HostID string
}

// Guard is the permitted-actor predicate for a transition: a pure function of
// (actor, visit) so the state machine stays testable without any auth
// infrastructure.
type Guard func(actor Actor, visit *models.Visit) bool

func assignedHostOrAdmin(actor Actor, visit *models.Visit) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	return actor.Role == models.RoleHost && actor.HostID != "" && actor.HostID == visit.HostID
}

func deskOrKiosk(actor Actor, visit *models.Visit) bool {
	switch actor.Role {
	case models.RoleAdmin, models.RoleReception, models.RoleKiosk:
		return true
	}
	return false
}

var guardTable = map[Action]Guard{
	ActionApprove:   assignedHostOrAdmin,
	ActionReject:    assignedHostOrAdmin,
	ActionReApprove: assignedHostOrAdmin,
	ActionCheckIn:   deskOrKiosk,
	ActionCheckOut:  deskOrKiosk,
}

// Allowed reports whether the actor may perform the action on this visit.
// A false result maps to Forbidden, which is distinct from an invalid
// transition: the action may well be legal from the current state, just not
// for this actor.
func Allowed(action Action, actor Actor, visit *models.Visit) bool {
	guard, ok := guardTable[action]
	if !ok {
		return false
	}
	return guard(actor, visit)
}
