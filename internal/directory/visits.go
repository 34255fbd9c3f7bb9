package directory

import (
	"context"

	"medibook-server/internal/models"
)

// CreateVisitRecord stores a visit record after checking the patient exists.
func (d *Directory) CreateVisitRecord(ctx context.Context, record *models.VisitRecord) error {
	if _, err := d.AccountByID(ctx, record.PatientID); err != nil {
		return err
	}
	if record.VisitDate.IsZero() {
		record.VisitDate = d.now()
	}
	return d.db.WithContext(ctx).Omit("Patient", "Doctor").Create(record).Error
}

// VisitRecordByID loads a visit record with both participants.
func (d *Directory) VisitRecordByID(ctx context.Context, id string) (*models.VisitRecord, error) {
	var record models.VisitRecord
	if err := d.db.WithContext(ctx).Preload("Patient").Preload("Doctor").First(&record, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrVisitNotFound)
	}
	return &record, nil
}

// VisitRecordsForPatient lists a patient's records, newest first.
func (d *Directory) VisitRecordsForPatient(ctx context.Context, patientID string) ([]models.VisitRecord, error) {
	var records []models.VisitRecord
	err := d.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("visit_date desc").
		Find(&records).Error
	return records, err
}

// VisitRecordsForDoctor lists the records a doctor has filed, newest first.
func (d *Directory) VisitRecordsForDoctor(ctx context.Context, doctorID string) ([]models.VisitRecord, error) {
	var records []models.VisitRecord
	err := d.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("visit_date desc").
		Find(&records).Error
	return records, err
}
