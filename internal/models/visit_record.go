package models

import (
	"time"
)

// VisitRecord is the clinical note a doctor files after a consultation.
type VisitRecord struct {
	BaseModel
	AppointmentID   string    `gorm:"size:36;index" json:"appointmentId,omitempty"`
	PatientID       string    `gorm:"size:36;index" json:"patientId"`
	DoctorID        string    `gorm:"size:36;index" json:"doctorId"`
	VisitDate       time.Time `json:"visitDate"`
	ChiefComplaint  string    `gorm:"size:255" json:"chiefComplaint"`
	Diagnosis       string    `gorm:"type:text" json:"diagnosis"`
	Summary         string    `gorm:"type:text" json:"summary"`
	Prescription    string    `gorm:"type:text" json:"prescription,omitempty"`
	PrescriptionURL string    `gorm:"size:512" json:"prescriptionUrl,omitempty"`
	FollowUpDate    string    `gorm:"size:10" json:"followUpDate,omitempty"`

	// Relations
	Patient Account `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  Account `gorm:"foreignKey:DoctorID" json:"-"`
}
