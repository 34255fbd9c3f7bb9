package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medibook-server/internal/directory"
	"medibook-server/internal/models"
	"medibook-server/internal/utils"
)

// DoctorHandler serves doctor discovery and doctor self-service.
type DoctorHandler struct {
	Dir *directory.Directory
	Log zerolog.Logger
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(dir *directory.Directory, logger zerolog.Logger) *DoctorHandler {
	return &DoctorHandler{Dir: dir, Log: logger}
}

func doctorViews(profiles []models.DoctorProfile) []models.DoctorView {
	views := make([]models.DoctorView, len(profiles))
	for i := range profiles {
		views[i] = profiles[i].View()
	}
	return views
}

func queryInt(c *gin.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil && v > 0 {
		return v
	}
	return def
}

// SearchDoctors handles ?specialization=&name=&hospital=&verified=&limit=.
func (h *DoctorHandler) SearchDoctors(c *gin.Context) {
	verified, _ := strconv.ParseBool(c.Query("verified"))
	doctors, err := h.Dir.SearchDoctors(c.Request.Context(), directory.DoctorQuery{
		Specialization: c.Query("specialization"),
		Name:           c.Query("name"),
		Hospital:       c.Query("hospital"),
		VerifiedOnly:   verified,
		Limit:          queryInt(c, "limit", 50),
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Doctors fetched successfully", doctorViews(doctors))
}

// GetSpecializations lists the specializations of available doctors.
func (h *DoctorHandler) GetSpecializations(c *gin.Context) {
	specializations, err := h.Dir.Specializations(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Specializations fetched successfully", specializations)
}

// GetTopRatedDoctors handles ?limit=.
func (h *DoctorHandler) GetTopRatedDoctors(c *gin.Context) {
	doctors, err := h.Dir.TopRatedDoctors(c.Request.Context(), queryInt(c, "limit", 10))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Top rated doctors fetched successfully", doctorViews(doctors))
}

// GetDoctorByID returns a doctor by account id.
func (h *DoctorHandler) GetDoctorByID(c *gin.Context) {
	profile, err := h.Dir.DoctorProfileByAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Doctor fetched successfully", profile.View())
}

// RateDoctorRequest represents the request body for rating a doctor.
type RateDoctorRequest struct {
	Rating int `json:"rating" binding:"required,min=1,max=5"`
}

// RateDoctor records the caller's rating of a doctor they have seen.
func (h *DoctorHandler) RateDoctor(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req RateDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	profile, err := h.Dir.RateDoctor(c.Request.Context(), c.Param("id"), id.AccountID, req.Rating)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Rating recorded successfully", profile.View())
}

// GetOwnProfile returns the calling doctor's profile.
func (h *DoctorHandler) GetOwnProfile(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	profile, err := h.Dir.DoctorProfileByAccount(c.Request.Context(), id.AccountID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Doctor profile fetched successfully", profile.View())
}

// UpdateDoctorProfileRequest represents the request body for a doctor's profile changes.
type UpdateDoctorProfileRequest struct {
	Specialization  *string  `json:"specialization" binding:"omitempty,max=100"`
	Qualification   *string  `json:"qualification" binding:"omitempty,max=255"`
	ExperienceYears *int     `json:"experienceYears" binding:"omitempty,min=0,max=80"`
	ConsultationFee *float64 `json:"consultationFee" binding:"omitempty,min=0"`
	Hospital        *string  `json:"hospital" binding:"omitempty,max=255"`
	Bio             *string  `json:"bio"`
	IsAvailable     *bool    `json:"isAvailable"`
}

// UpdateOwnProfile updates the calling doctor's profile.
func (h *DoctorHandler) UpdateOwnProfile(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req UpdateDoctorProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	profile, err := h.Dir.UpdateDoctorProfile(c.Request.Context(), id.AccountID, directory.DoctorProfileUpdate{
		Specialization:  req.Specialization,
		Qualification:   req.Qualification,
		ExperienceYears: req.ExperienceYears,
		ConsultationFee: req.ConsultationFee,
		Hospital:        req.Hospital,
		Bio:             req.Bio,
		IsAvailable:     req.IsAvailable,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Doctor profile updated successfully", profile.View())
}

// ScheduleRequest represents a weekly availability window.
type ScheduleRequest struct {
	DayOfWeek          string  `json:"dayOfWeek" binding:"required"`
	StartTime          string  `json:"startTime" binding:"required"`
	EndTime            string  `json:"endTime" binding:"required"`
	SlotMinutes        int     `json:"slotMinutes" binding:"omitempty,min=5,max=480"`
	MaxPatientsPerSlot int     `json:"maxPatientsPerSlot" binding:"omitempty,min=1"`
	Fee                float64 `json:"fee" binding:"min=0"`
	IsAvailable        *bool   `json:"isAvailable"`
}

func (r ScheduleRequest) input() directory.ScheduleInput {
	available := true
	if r.IsAvailable != nil {
		available = *r.IsAvailable
	}
	return directory.ScheduleInput{
		DayOfWeek:          r.DayOfWeek,
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		SlotMinutes:        r.SlotMinutes,
		MaxPatientsPerSlot: r.MaxPatientsPerSlot,
		Fee:                r.Fee,
		IsAvailable:        available,
	}
}

// GetSchedules lists the calling doctor's weekly schedule.
func (h *DoctorHandler) GetSchedules(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	schedules, err := h.Dir.ListSchedules(c.Request.Context(), id.AccountID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Schedules fetched successfully", schedules)
}

// CreateSchedule adds a weekly window for the calling doctor.
func (h *DoctorHandler) CreateSchedule(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req ScheduleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	schedule, err := h.Dir.CreateSchedule(c.Request.Context(), id.AccountID, req.input())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Created(c, "Schedule created successfully", schedule)
}

// UpdateSchedule replaces one of the calling doctor's windows.
func (h *DoctorHandler) UpdateSchedule(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req ScheduleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	schedule, err := h.Dir.UpdateSchedule(c.Request.Context(), id.AccountID, c.Param("id"), req.input())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Schedule updated successfully", schedule)
}

// DeleteSchedule removes one of the calling doctor's windows.
func (h *DoctorHandler) DeleteSchedule(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	if err := h.Dir.DeleteSchedule(c.Request.Context(), id.AccountID, c.Param("id")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Schedule deleted successfully", nil)
}
