package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medibook-server/internal/middleware"
	"medibook-server/internal/models"
	"medibook-server/internal/notify"
	"medibook-server/internal/scheduling"
	"medibook-server/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Engine   *scheduling.Engine
	Notifier notify.Notifier
	Log      zerolog.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(engine *scheduling.Engine, notifier notify.Notifier, logger zerolog.Logger) *AppointmentHandler {
	return &AppointmentHandler{Engine: engine, Notifier: notifier, Log: logger}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
// PatientID is only honoured for administrators booking on behalf of a patient.
type CreateAppointmentRequest struct {
	DoctorID         string `json:"doctorId" binding:"required"`
	PatientID        string `json:"patientId"`
	Date             string `json:"date" binding:"required"`
	Time             string `json:"time" binding:"required"`
	ConsultationType string `json:"consultationType"`
	Symptoms         string `json:"symptoms" binding:"max=2000"`
	Notes            string `json:"notes" binding:"max=2000"`
}

// CreateAppointment books a slot for the caller.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patientID := id.AccountID
	if req.PatientID != "" && req.PatientID != id.AccountID {
		if !id.IsAdmin() {
			utils.Forbidden(c, "Patients can only book appointments for themselves.")
			return
		}
		patientID = req.PatientID
	}

	appointment, err := h.Engine.Book(c.Request.Context(), scheduling.BookingRequest{
		PatientID:        patientID,
		DoctorID:         req.DoctorID,
		Date:             req.Date,
		Time:             req.Time,
		ConsultationType: req.ConsultationType,
		Symptoms:         req.Symptoms,
		Notes:            req.Notes,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.notify(c, notify.EventBooked, appointment)
	utils.Created(c, "Appointment booked successfully", appointment.View())
}

// AvailableSlotsResponse lists the free slots of a doctor on a date.
type AvailableSlotsResponse struct {
	DoctorID string   `json:"doctorId"`
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
}

// GetAvailableSlots returns free slots for ?doctorId=&date=, or for the :id
// path parameter on the discovery routes.
func (h *AppointmentHandler) GetAvailableSlots(c *gin.Context) {
	doctorID := firstNonEmpty(c.Param("id"), c.Query("doctorId"))
	date := c.Query("date")
	if doctorID == "" || date == "" {
		utils.BadRequest(c, "doctorId and date are required")
		return
	}
	slots, err := h.Engine.ListAvailableSlots(c.Request.Context(), doctorID, date)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Available slots fetched successfully", AvailableSlotsResponse{DoctorID: doctorID, Date: date, Slots: slots})
}

// GetPatientAppointments lists the caller's own appointments as a patient.
func (h *AppointmentHandler) GetPatientAppointments(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	h.list(c, scheduling.Filter{PatientID: id.AccountID})
}

// GetDoctorAppointments lists the appointments booked with the calling doctor.
func (h *AppointmentHandler) GetDoctorAppointments(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	h.list(c, scheduling.Filter{DoctorID: id.AccountID})
}

// GetAllAppointments lists every appointment (admin). ?patientId= and
// ?doctorId= narrow the result.
func (h *AppointmentHandler) GetAllAppointments(c *gin.Context) {
	h.list(c, scheduling.Filter{PatientID: c.Query("patientId"), DoctorID: c.Query("doctorId")})
}

// list applies the ?status=&from=&to= query filters on top of base.
func (h *AppointmentHandler) list(c *gin.Context, base scheduling.Filter) {
	if s := c.Query("status"); s != "" {
		status, ok := models.ParseAppointmentStatus(s)
		if !ok {
			respondError(c, h.Log, scheduling.ErrInvalidStatus)
			return
		}
		base.Status = status
	}
	base.From = c.Query("from")
	base.To = c.Query("to")

	appointments, err := h.Engine.List(c.Request.Context(), base)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	views := make([]models.AppointmentView, len(appointments))
	for i := range appointments {
		views[i] = appointments[i].View()
	}
	utils.Success(c, "Appointments fetched successfully", views)
}

// loadForParticipant fetches the :id appointment and checks the caller is its
// patient, its doctor or an administrator.
func (h *AppointmentHandler) loadForParticipant(c *gin.Context) (*models.Appointment, middleware.Identity, bool) {
	id, ok := requireIdentity(c)
	if !ok {
		return nil, id, false
	}
	appointment, err := h.Engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return nil, id, false
	}
	if !id.IsAdmin() && id.AccountID != appointment.PatientID && id.AccountID != appointment.DoctorID {
		utils.Forbidden(c, "You are not authorized to access this appointment")
		return nil, id, false
	}
	return appointment, id, true
}

// GetAppointmentByID handles fetching a single appointment by its ID.
// Accessible by involved patient, doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appointment, _, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	utils.Success(c, "Appointment fetched successfully", appointment.View())
}

// UpdateAppointmentStatusRequest represents the request body for updating an appointment's status.
type UpdateAppointmentStatusRequest struct {
	Status       string  `json:"status" binding:"required"`
	Prescription *string `json:"prescription"`
	Notes        *string `json:"notes"`
}

// UpdateAppointmentStatus moves an appointment along its lifecycle. The doctor
// and administrators may apply any legal transition; the patient may only cancel.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	appointment, id, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	status, valid := models.ParseAppointmentStatus(req.Status)
	if !valid {
		respondError(c, h.Log, scheduling.ErrInvalidStatus)
		return
	}

	isDoctor := id.AccountID == appointment.DoctorID
	if !id.IsAdmin() && !isDoctor {
		if status != models.AppointmentCancelled || req.Prescription != nil {
			utils.Forbidden(c, "Patients can only cancel appointments.")
			return
		}
	}

	updated, err := h.Engine.UpdateStatus(c.Request.Context(), appointment.ID, status, req.Prescription, req.Notes)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	switch status {
	case models.AppointmentCancelled:
		h.notify(c, notify.EventCancelled, updated)
	case models.AppointmentCompleted:
		h.notify(c, notify.EventCompleted, updated)
	}
	utils.Success(c, "Appointment status updated successfully", updated.View())
}

// CancelAppointment cancels an appointment for any participant.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	appointment, _, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	cancelled, err := h.Engine.Cancel(c.Request.Context(), appointment.ID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.notify(c, notify.EventCancelled, cancelled)
	utils.Success(c, "Appointment cancelled successfully", cancelled.View())
}

// RescheduleAppointmentRequest represents the request body for rescheduling an appointment.
type RescheduleAppointmentRequest struct {
	Date string `json:"date" binding:"required"`
	Time string `json:"time" binding:"required"`
}

// RescheduleAppointment moves a scheduled appointment to another free slot
// with the same doctor.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	appointment, _, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	moved, err := h.Engine.Reschedule(c.Request.Context(), appointment.ID, req.Date, req.Time)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.notify(c, notify.EventRescheduled, moved)
	utils.Success(c, "Appointment rescheduled successfully", moved.View())
}

func (h *AppointmentHandler) notify(c *gin.Context, event notify.Event, a *models.Appointment) {
	if h.Notifier == nil {
		return
	}
	if err := h.Notifier.AppointmentEvent(c.Request.Context(), event, a); err != nil {
		h.Log.Warn().Err(err).Str("appointment_id", a.ID).Str("event", string(event)).Msg("notification failed")
	}
}

// GetDoctorPatients lists the distinct patients who have booked with the
// calling doctor.
func (h *AppointmentHandler) GetDoctorPatients(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	appointments, err := h.Engine.List(c.Request.Context(), scheduling.Filter{DoctorID: id.AccountID})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	seen := make(map[string]bool)
	patients := make([]models.AccountSanitized, 0)
	for i := range appointments {
		p := &appointments[i].Patient
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		patients = append(patients, p.Sanitize())
	}
	utils.Success(c, "Patients fetched successfully", patients)
}
