package scheduling

import "medibook-server/internal/models"

// transitions lists the legal next states. States missing from the map are terminal.
var transitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.AppointmentScheduled: {
		models.AppointmentCompleted,
		models.AppointmentCancelled,
		models.AppointmentNoShow,
	},
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to models.AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s models.AppointmentStatus) bool {
	return len(transitions[s]) == 0
}
