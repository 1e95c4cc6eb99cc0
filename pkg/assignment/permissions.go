package assignment

import (
	"github.com/jordanlanch/leadflow/pkg/models"
)

// Permission predicates for the assignment workflow.

// CanManage reports whether the actor may create or delete assignments.
func CanManage(actor models.Actor) bool {
	return actor.Role == models.RoleAdmin || actor.Role == models.RoleManager
}

// CanView reports whether the actor may read the given assignment.
// Employees only see their own; admins and managers see everything.
func CanView(actor models.Actor, a *models.Assignment) bool {
	if CanManage(actor) {
		return true
	}
	return a.AssignedToID == actor.ID
}

// CanUpdate reports whether the actor may mutate the given assignment.
// Same rule as viewing: managers/admins, or the current assignee.
func CanUpdate(actor models.Actor, a *models.Assignment) bool {
	return CanView(actor, a)
}

// SeesAll reports whether list and stats queries are unscoped for the actor.
func SeesAll(actor models.Actor) bool {
	return CanManage(actor)
}
