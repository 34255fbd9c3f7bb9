package models

// DoctorProfile extends an Account that represents a practitioner.
type DoctorProfile struct {
	BaseModel
	AccountID       string  `gorm:"uniqueIndex;size:36;not null" json:"accountId"`
	Specialization  string  `gorm:"size:100;index" json:"specialization"`
	Qualification   string  `gorm:"size:255" json:"qualification"`
	ExperienceYears int     `json:"experienceYears"`
	ConsultationFee float64 `json:"consultationFee"`
	Hospital        string  `gorm:"size:255" json:"hospital"`
	Bio             string  `gorm:"type:text" json:"bio,omitempty"`
	IsAvailable     bool    `json:"isAvailable"`
	IsVerified      bool    `gorm:"default:false" json:"isVerified"`
	Rating          float64 `gorm:"default:0" json:"rating"`
	ReviewCount     int     `gorm:"default:0" json:"reviewCount"`

	Account Account `gorm:"foreignKey:AccountID" json:"-"`
}

// DoctorView is the public representation of a doctor.
type DoctorView struct {
	ID              string  `json:"id"`
	AccountID       string  `json:"accountId"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	PhoneNumber     string  `json:"phoneNumber,omitempty"`
	Specialization  string  `json:"specialization"`
	Qualification   string  `json:"qualification"`
	ExperienceYears int     `json:"experienceYears"`
	ConsultationFee float64 `json:"consultationFee"`
	Hospital        string  `json:"hospital"`
	Bio             string  `json:"bio,omitempty"`
	IsAvailable     bool    `json:"isAvailable"`
	IsVerified      bool    `json:"isVerified"`
	Rating          float64 `json:"rating"`
	ReviewCount     int     `json:"reviewCount"`
}

// View builds the public representation. Account must be preloaded.
func (d *DoctorProfile) View() DoctorView {
	return DoctorView{
		ID:              d.ID,
		AccountID:       d.AccountID,
		Name:            d.Account.FullName(),
		Email:           d.Account.Email,
		PhoneNumber:     d.Account.PhoneNumber,
		Specialization:  d.Specialization,
		Qualification:   d.Qualification,
		ExperienceYears: d.ExperienceYears,
		ConsultationFee: d.ConsultationFee,
		Hospital:        d.Hospital,
		Bio:             d.Bio,
		IsAvailable:     d.IsAvailable,
		IsVerified:      d.IsVerified,
		Rating:          d.Rating,
		ReviewCount:     d.ReviewCount,
	}
}

// DoctorRating is one patient's score for one doctor. A patient rates a doctor once.
type DoctorRating struct {
	BaseModel
	DoctorID  string `gorm:"size:36;not null;uniqueIndex:idx_rating_doctor_patient" json:"doctorId"`
	PatientID string `gorm:"size:36;not null;uniqueIndex:idx_rating_doctor_patient" json:"patientId"`
	Stars     int    `gorm:"not null" json:"stars"`
}

// DoctorSchedule is a recurring weekly availability window.
type DoctorSchedule struct {
	BaseModel
	DoctorID           string  `gorm:"size:36;index" json:"doctorId"`
	DayOfWeek          Weekday `gorm:"size:10;index" json:"dayOfWeek"`
	StartTime          string  `gorm:"size:5;not null" json:"startTime"`
	EndTime            string  `gorm:"size:5;not null" json:"endTime"`
	SlotMinutes        int     `gorm:"default:30" json:"slotMinutes"`
	MaxPatientsPerSlot int     `gorm:"default:1" json:"maxPatientsPerSlot"`
	Fee                float64 `json:"fee"`
	IsAvailable        bool    `json:"isAvailable"`

	Doctor Account `gorm:"foreignKey:DoctorID" json:"-"`
}
