package models

import (
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN string
}

// InitDB opens the MySQL connection. Schema migration is a separate step, see Migrate.
func InitDB(config DatabaseConfig) (*gorm.DB, error) {
	return gorm.Open(mysqldriver.Open(config.DSN), GormConfig())
}

// GormConfig is shared by every dialect. Foreign keys are not created: appointments
// and visit records outlive the accounts they reference.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

// Migrate creates or updates the schema and seeds the fixed role set.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Role{},
		&Account{},
		&AccountRole{},
		&DoctorProfile{},
		&DoctorSchedule{},
		&DoctorRating{},
		&Appointment{},
		&VisitRecord{},
	); err != nil {
		return err
	}
	for _, name := range AllRoles {
		if err := db.Where(Role{Name: name}).FirstOrCreate(&Role{Name: name}).Error; err != nil {
			return err
		}
	}
	return nil
}

// IsUniqueViolation reports whether err was caused by a unique index.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	// sqlite reports constraint failures only through the message text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
