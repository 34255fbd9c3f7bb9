// Package directory is the persistent store for accounts, roles, doctor
// profiles, weekly schedules and visit records.
package directory

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Errors returned by the directory. Callers map them to responses with errors.Is.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrDuplicateUsername  = fmt.Errorf("%w: username is taken", ErrDuplicateAccount)
	ErrDuplicateEmail     = fmt.Errorf("%w: email is taken", ErrDuplicateAccount)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUnknownRole        = errors.New("unknown role")
	ErrInvalidStatus      = errors.New("invalid account status")
	ErrDoctorNotFound     = errors.New("doctor not found")
	ErrScheduleNotFound   = errors.New("schedule not found")
	ErrInvalidSchedule    = errors.New("invalid schedule")
	ErrNotOwner           = errors.New("resource belongs to another account")
	ErrVisitNotFound      = errors.New("visit record not found")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrNotEligible        = errors.New("no completed appointment with this doctor")
	ErrAlreadyRated       = errors.New("doctor already rated by this patient")
)

// Directory wraps the relational store.
type Directory struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a Directory over db.
func New(db *gorm.DB) *Directory {
	return &Directory{db: db, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (d *Directory) WithClock(now func() time.Time) *Directory {
	d.now = now
	return d
}

func notFound(err error, kind error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return kind
	}
	return err
}
