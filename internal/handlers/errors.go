package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medibook-server/internal/agent"
	"medibook-server/internal/directory"
	"medibook-server/internal/external"
	"medibook-server/internal/middleware"
	"medibook-server/internal/scheduling"
	"medibook-server/internal/utils"
)

// errorKind maps a sentinel error to the status and message clients see.
type errorKind struct {
	err     error
	status  int
	message string
}

// errorKinds is checked in order, so wrapped sentinels must come before the
// errors they wrap.
var errorKinds = []errorKind{
	{directory.ErrDuplicateUsername, http.StatusConflict, "Username is already taken"},
	{directory.ErrDuplicateEmail, http.StatusConflict, "Email is already registered"},
	{directory.ErrDuplicateAccount, http.StatusConflict, "Account already exists"},
	{directory.ErrAccountNotFound, http.StatusNotFound, "Account not found"},
	{directory.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid username/email or password"},
	{directory.ErrAccountDisabled, http.StatusForbidden, "Account is disabled"},
	{directory.ErrUnknownRole, http.StatusBadRequest, "Unknown role"},
	{directory.ErrInvalidStatus, http.StatusBadRequest, "Invalid account status"},
	{directory.ErrDoctorNotFound, http.StatusNotFound, "Doctor not found"},
	{directory.ErrScheduleNotFound, http.StatusNotFound, "Schedule not found"},
	{directory.ErrInvalidSchedule, http.StatusBadRequest, "Invalid schedule: check the day and the HH:MM window"},
	{directory.ErrNotOwner, http.StatusForbidden, "You do not have permission to modify this resource"},
	{directory.ErrVisitNotFound, http.StatusNotFound, "Visit record not found"},
	{directory.ErrInvalidRating, http.StatusBadRequest, "Rating must be between 1 and 5"},
	{directory.ErrNotEligible, http.StatusForbidden, "Only patients with a completed appointment can rate this doctor"},
	{directory.ErrAlreadyRated, http.StatusConflict, "You have already rated this doctor"},

	{scheduling.ErrSlotConflict, http.StatusConflict, "This slot is already booked"},
	{scheduling.ErrSlotUnavailable, http.StatusBadRequest, "The requested time is not an available slot for this doctor"},
	{scheduling.ErrSlotInPast, http.StatusBadRequest, "The requested slot is in the past"},
	{scheduling.ErrInvalidDate, http.StatusBadRequest, "Date must be in YYYY-MM-DD format"},
	{scheduling.ErrInvalidTime, http.StatusBadRequest, "Time must be in HH:MM format"},
	{scheduling.ErrDoctorNotFound, http.StatusNotFound, "Doctor not found"},
	{scheduling.ErrDoctorUnavailable, http.StatusConflict, "Doctor is not accepting appointments"},
	{scheduling.ErrPatientNotFound, http.StatusNotFound, "Patient not found"},
	{scheduling.ErrSelfBooking, http.StatusBadRequest, "Doctors cannot book appointments with themselves"},
	{scheduling.ErrAppointmentNotFound, http.StatusNotFound, "Appointment not found"},
	{scheduling.ErrInvalidTransition, http.StatusConflict, "The appointment cannot move to the requested status"},
	{scheduling.ErrInvalidConsultation, http.StatusBadRequest, "Consultation type must be IN_PERSON or ONLINE"},
	{scheduling.ErrInvalidStatus, http.StatusBadRequest, "Invalid appointment status"},
	{scheduling.ErrLockTimeout, http.StatusServiceUnavailable, "The slot is busy, please try again"},

	{agent.ErrUnknownMode, http.StatusBadRequest, "Mode must be one of general, search, knowledge or doctor"},
	{external.ErrNotConfigured, http.StatusServiceUnavailable, "This feature is not available right now"},
	{external.ErrUpstream, http.StatusBadGateway, "An external service failed, please try again later"},
}

// respondError writes the fixed response for err. Unknown errors become a 500
// and are logged with their detail.
func respondError(c *gin.Context, logger zerolog.Logger, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			if k.status >= http.StatusInternalServerError {
				logger.Warn().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("request failed")
			}
			utils.Error(c, k.status, k.message)
			return
		}
	}
	logger.Error().Err(err).
		Str("request_id", middleware.GetRequestID(c)).
		Str("path", c.FullPath()).
		Msg("unhandled error")
	utils.InternalServerError(c, "An unexpected error occurred")
}

// requireIdentity returns the caller's identity or writes a 401.
func requireIdentity(c *gin.Context) (middleware.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		utils.Unauthorized(c, "Authentication required")
	}
	return id, ok
}
