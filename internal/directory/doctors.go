package directory

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"medibook-server/internal/models"
)

// DoctorProfileByAccount loads the profile of a doctor account.
func (d *Directory) DoctorProfileByAccount(ctx context.Context, accountID string) (*models.DoctorProfile, error) {
	var profile models.DoctorProfile
	if err := d.db.WithContext(ctx).Preload("Account").First(&profile, "account_id = ?", accountID).Error; err != nil {
		return nil, notFound(err, ErrDoctorNotFound)
	}
	return &profile, nil
}

// DoctorProfileUpdate holds optional profile changes made by the doctor.
type DoctorProfileUpdate struct {
	Specialization  *string
	Qualification   *string
	ExperienceYears *int
	ConsultationFee *float64
	Hospital        *string
	Bio             *string
	IsAvailable     *bool
}

// UpdateDoctorProfile applies the non-nil fields of u.
func (d *Directory) UpdateDoctorProfile(ctx context.Context, accountID string, u DoctorProfileUpdate) (*models.DoctorProfile, error) {
	profile, err := d.DoctorProfileByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if u.Specialization != nil {
		profile.Specialization = strings.TrimSpace(*u.Specialization)
	}
	if u.Qualification != nil {
		profile.Qualification = strings.TrimSpace(*u.Qualification)
	}
	if u.ExperienceYears != nil {
		profile.ExperienceYears = *u.ExperienceYears
	}
	if u.ConsultationFee != nil {
		profile.ConsultationFee = *u.ConsultationFee
	}
	if u.Hospital != nil {
		profile.Hospital = strings.TrimSpace(*u.Hospital)
	}
	if u.Bio != nil {
		profile.Bio = *u.Bio
	}
	if u.IsAvailable != nil {
		profile.IsAvailable = *u.IsAvailable
	}
	if err := d.db.WithContext(ctx).Omit("Account").Save(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

// DoctorQuery narrows SearchDoctors. Empty fields match everything.
type DoctorQuery struct {
	Specialization string
	Name           string
	Hospital       string
	IncludeOffline bool
	VerifiedOnly   bool
	Limit          int
}

// SearchDoctors finds doctor profiles. Unavailable doctors are left out unless
// IncludeOffline is set.
func (d *Directory) SearchDoctors(ctx context.Context, q DoctorQuery) ([]models.DoctorProfile, error) {
	tx := d.db.WithContext(ctx).Model(&models.DoctorProfile{}).
		Joins("Account").
		Order("doctor_profiles.rating desc, doctor_profiles.review_count desc")
	tx = applyDoctorQuery(tx, q)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var profiles []models.DoctorProfile
	if err := tx.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func applyDoctorQuery(tx *gorm.DB, q DoctorQuery) *gorm.DB {
	if !q.IncludeOffline {
		tx = tx.Where("doctor_profiles.is_available = ?", true)
	}
	if q.VerifiedOnly {
		tx = tx.Where("doctor_profiles.is_verified = ?", true)
	}
	if q.Specialization != "" {
		tx = tx.Where("LOWER(doctor_profiles.specialization) LIKE ?", "%"+strings.ToLower(q.Specialization)+"%")
	}
	if q.Hospital != "" {
		tx = tx.Where("LOWER(doctor_profiles.hospital) LIKE ?", "%"+strings.ToLower(q.Hospital)+"%")
	}
	if q.Name != "" {
		like := "%" + strings.ToLower(q.Name) + "%"
		tx = tx.Where("LOWER(`Account`.first_name) LIKE ? OR LOWER(`Account`.last_name) LIKE ? OR LOWER(`Account`.username) LIKE ?", like, like, like)
	}
	return tx
}

// Specializations lists the distinct specializations of available doctors.
func (d *Directory) Specializations(ctx context.Context) ([]string, error) {
	var specs []string
	err := d.db.WithContext(ctx).Model(&models.DoctorProfile{}).
		Where("is_available = ? AND specialization <> ''", true).
		Distinct().
		Order("specialization asc").
		Pluck("specialization", &specs).Error
	if err != nil {
		return nil, err
	}
	return specs, nil
}

// TopRatedDoctors returns up to limit available doctors by rating.
func (d *Directory) TopRatedDoctors(ctx context.Context, limit int) ([]models.DoctorProfile, error) {
	if limit <= 0 {
		limit = 10
	}
	return d.SearchDoctors(ctx, DoctorQuery{Limit: limit})
}

// SetDoctorVerified sets the verification flag.
func (d *Directory) SetDoctorVerified(ctx context.Context, accountID string, verified bool) (*models.DoctorProfile, error) {
	res := d.db.WithContext(ctx).Model(&models.DoctorProfile{}).
		Where("account_id = ?", accountID).
		Update("is_verified", verified)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDoctorNotFound
	}
	return d.DoctorProfileByAccount(ctx, accountID)
}

// RateDoctor folds a 1-5 rating into the doctor's average. Only patients with a
// completed appointment with the doctor may rate, and each only once.
func (d *Directory) RateDoctor(ctx context.Context, doctorID, patientID string, stars int) (*models.DoctorProfile, error) {
	if stars < 1 || stars > 5 {
		return nil, ErrInvalidRating
	}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var completed int64
		if err := tx.Model(&models.Appointment{}).
			Where("doctor_id = ? AND patient_id = ? AND status = ?", doctorID, patientID, models.AppointmentCompleted).
			Count(&completed).Error; err != nil {
			return err
		}
		if completed == 0 {
			return ErrNotEligible
		}

		var profile models.DoctorProfile
		if err := tx.First(&profile, "account_id = ?", doctorID).Error; err != nil {
			return notFound(err, ErrDoctorNotFound)
		}

		var rated int64
		if err := tx.Model(&models.DoctorRating{}).
			Where("doctor_id = ? AND patient_id = ?", doctorID, patientID).
			Count(&rated).Error; err != nil {
			return err
		}
		if rated > 0 {
			return ErrAlreadyRated
		}
		// The unique index catches a concurrent first rating by the same patient.
		rating := models.DoctorRating{DoctorID: doctorID, PatientID: patientID, Stars: stars}
		if err := tx.Create(&rating).Error; err != nil {
			if models.IsUniqueViolation(err) {
				return ErrAlreadyRated
			}
			return err
		}

		total := profile.Rating*float64(profile.ReviewCount) + float64(stars)
		profile.ReviewCount++
		profile.Rating = total / float64(profile.ReviewCount)
		return tx.Model(&profile).Updates(map[string]interface{}{
			"rating":       profile.Rating,
			"review_count": profile.ReviewCount,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return d.DoctorProfileByAccount(ctx, doctorID)
}
