package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medibook-server/internal/directory"
	"medibook-server/internal/models"
	"medibook-server/internal/scheduling"
	"medibook-server/internal/utils"
)

// VisitHandler handles visit record requests.
type VisitHandler struct {
	Dir    *directory.Directory
	Engine *scheduling.Engine
	Log    zerolog.Logger
}

// NewVisitHandler creates a new VisitHandler.
func NewVisitHandler(dir *directory.Directory, engine *scheduling.Engine, logger zerolog.Logger) *VisitHandler {
	return &VisitHandler{Dir: dir, Engine: engine, Log: logger}
}

// CreateVisitRequest represents the request body for filing a visit record.
type CreateVisitRequest struct {
	PatientID       string `json:"patientId" binding:"required,uuid"`
	AppointmentID   string `json:"appointmentId" binding:"omitempty,uuid"`
	VisitDate       string `json:"visitDate"` // RFC 3339, defaults to now
	ChiefComplaint  string `json:"chiefComplaint" binding:"max=255"`
	Diagnosis       string `json:"diagnosis" binding:"required"`
	Summary         string `json:"summary"`
	Prescription    string `json:"prescription"`
	PrescriptionURL string `json:"prescriptionUrl" binding:"omitempty,url,max=512"`
	FollowUpDate    string `json:"followUpDate" binding:"omitempty,datetime=2006-01-02"`
}

// CreateVisit files a visit record. Only accessible by doctors. When an
// appointment is referenced it must be between the caller and the patient.
func (h *VisitHandler) CreateVisit(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req CreateVisitRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var visitDate time.Time
	if req.VisitDate != "" {
		var err error
		visitDate, err = time.Parse(time.RFC3339, req.VisitDate)
		if err != nil {
			utils.BadRequest(c, "Invalid date format. Please use ISO 8601 format (YYYY-MM-DDTHH:MM:SSZ)")
			return
		}
	}

	if req.AppointmentID != "" {
		appointment, err := h.Engine.Get(c.Request.Context(), req.AppointmentID)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		if appointment.DoctorID != id.AccountID || appointment.PatientID != req.PatientID {
			utils.Forbidden(c, "The appointment does not belong to you and this patient")
			return
		}
	}

	record := models.VisitRecord{
		AppointmentID:   req.AppointmentID,
		PatientID:       req.PatientID,
		DoctorID:        id.AccountID,
		VisitDate:       visitDate,
		ChiefComplaint:  req.ChiefComplaint,
		Diagnosis:       req.Diagnosis,
		Summary:         req.Summary,
		Prescription:    req.Prescription,
		PrescriptionURL: req.PrescriptionURL,
		FollowUpDate:    req.FollowUpDate,
	}
	if err := h.Dir.CreateVisitRecord(c.Request.Context(), &record); err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Created(c, "Visit record created successfully", record)
}

// GetPatientVisits lists the caller's own visit records.
func (h *VisitHandler) GetPatientVisits(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	records, err := h.Dir.VisitRecordsForPatient(c.Request.Context(), id.AccountID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Visit records fetched successfully", records)
}

// GetDoctorVisits lists the records the calling doctor has filed.
func (h *VisitHandler) GetDoctorVisits(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	records, err := h.Dir.VisitRecordsForDoctor(c.Request.Context(), id.AccountID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Visit records fetched successfully", records)
}

// GetVisitByID returns one record to its patient, its doctor or an administrator.
func (h *VisitHandler) GetVisitByID(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	record, err := h.Dir.VisitRecordByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	if !id.IsAdmin() && id.AccountID != record.PatientID && id.AccountID != record.DoctorID {
		utils.Forbidden(c, "You are not authorized to view this record")
		return
	}
	utils.Success(c, "Visit record fetched successfully", record)
}
