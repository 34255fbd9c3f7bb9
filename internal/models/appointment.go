package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentNoShow    AppointmentStatus = "NO_SHOW"
)

// ParseAppointmentStatus accepts any letter case.
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	st := AppointmentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case AppointmentScheduled, AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return st, true
	}
	return "", false
}

// ConsultationType is how the consultation takes place.
type ConsultationType string

const (
	ConsultationInPerson ConsultationType = "IN_PERSON"
	ConsultationOnline   ConsultationType = "ONLINE"
)

// ParseConsultationType defaults to in-person when s is empty.
func ParseConsultationType(s string) (ConsultationType, bool) {
	if strings.TrimSpace(s) == "" {
		return ConsultationInPerson, true
	}
	ct := ConsultationType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	switch ct {
	case ConsultationInPerson, ConsultationOnline:
		return ct, true
	}
	return "", false
}

// Date and time-of-day layouts used for appointment columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Appointment represents a booked (doctor, date, time) consultation.
type Appointment struct {
	BaseModel
	PatientID        string            `gorm:"size:36;index" json:"patientId"`
	DoctorID         string            `gorm:"size:36;index:idx_appointment_doctor_day" json:"doctorId"`
	Date             string            `gorm:"size:10;index:idx_appointment_doctor_day" json:"date"`
	Time             string            `gorm:"size:5" json:"time"`
	Status           AppointmentStatus `gorm:"size:20;index" json:"status"`
	ConsultationType ConsultationType  `gorm:"size:20" json:"consultationType"`
	Symptoms         string            `gorm:"type:text" json:"symptoms,omitempty"`
	Notes            string            `gorm:"type:text" json:"notes,omitempty"`
	Prescription     string            `gorm:"type:text" json:"prescription,omitempty"`
	Fee              float64           `json:"fee"`

	// ActiveSlot holds doctor|date|time while the appointment is not cancelled
	// and NULL otherwise, so the unique index allows a single live booking per slot.
	ActiveSlot *string `gorm:"uniqueIndex;size:64" json:"-"`

	Patient Account `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  Account `gorm:"foreignKey:DoctorID" json:"-"`
}

// SlotKey identifies a bookable slot.
func SlotKey(doctorID, date, clock string) string {
	return doctorID + "|" + date + "|" + clock
}

// BeforeSave keeps ActiveSlot in step with Status.
func (a *Appointment) BeforeSave(tx *gorm.DB) error {
	if a.Status == AppointmentCancelled {
		a.ActiveSlot = nil
		return nil
	}
	key := SlotKey(a.DoctorID, a.Date, a.Time)
	a.ActiveSlot = &key
	return nil
}

// StartsAt combines Date and Time in loc.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, a.Date+" "+a.Time, loc)
}

// AppointmentView is an appointment with participant names resolved.
type AppointmentView struct {
	Appointment
	PatientName string `json:"patientName,omitempty"`
	DoctorName  string `json:"doctorName,omitempty"`
}

// View builds the response form. Patient and Doctor are used when preloaded.
func (a *Appointment) View() AppointmentView {
	return AppointmentView{
		Appointment: *a,
		PatientName: a.Patient.FullName(),
		DoctorName:  a.Doctor.FullName(),
	}
}

// Weekday is an upper-case day name such as MONDAY.
type Weekday string

// WeekdayOf returns the Weekday of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(strings.ToUpper(t.Weekday().String()))
}

// ParseWeekday accepts any letter case.
func ParseWeekday(s string) (Weekday, bool) {
	w := Weekday(strings.ToUpper(strings.TrimSpace(s)))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if Weekday(strings.ToUpper(d.String())) == w {
			return w, true
		}
	}
	return "", false
}
