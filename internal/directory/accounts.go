package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"medibook-server/internal/models"
)

// NewAccount carries the registration fields.
type NewAccount struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	Status      models.AccountStatus
}

// Register creates an account with its roles and, for doctors, its profile.
// Everything is written in one transaction; a duplicate username or email leaves
// the existing row untouched.
func (d *Directory) Register(ctx context.Context, in NewAccount, roles []models.RoleName, profile *models.DoctorProfile) (*models.Account, error) {
	if len(roles) == 0 {
		roles = []models.RoleName{models.RoleUser}
	}
	for _, r := range roles {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRole, r)
		}
	}

	status := in.Status
	if status == "" {
		status = models.StatusActive
	}
	account := models.Account{
		Username:    strings.TrimSpace(in.Username),
		Email:       normalizeEmail(in.Email),
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Status:      status,
	}
	if err := account.SetPassword(in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("username = ?", account.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateUsername
		}
		if err := tx.Model(&models.Account{}).Where("email = ?", account.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateEmail
		}

		if err := tx.Create(&account).Error; err != nil {
			if models.IsUniqueViolation(err) {
				return ErrDuplicateAccount
			}
			return err
		}
		for _, r := range roles {
			if err := assignRole(tx, account.ID, r, d.now()); err != nil {
				return err
			}
		}
		if profile != nil {
			profile.AccountID = account.ID
			if err := tx.Omit("Account").Create(profile).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d.AccountByID(ctx, account.ID)
}

func assignRole(tx *gorm.DB, accountID string, name models.RoleName, at time.Time) error {
	var role models.Role
	if err := tx.Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
		return err
	}
	var count int64
	if err := tx.Model(&models.AccountRole{}).
		Where("account_id = ? AND role_id = ?", accountID, role.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	link := models.AccountRole{AccountID: accountID, RoleID: role.ID, AssignedAt: at}
	return tx.Omit("Role").Create(&link).Error
}

// AccountByID loads an account with its roles.
func (d *Directory) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := d.db.WithContext(ctx).Preload("Roles.Role").First(&account, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrAccountNotFound)
	}
	return &account, nil
}

// RolesOf lists the roles held by an account.
func (d *Directory) RolesOf(ctx context.Context, accountID string) ([]models.RoleName, error) {
	account, err := d.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return account.RoleNames(), nil
}

// Authenticate checks a username-or-email and password pair and stamps the login time.
func (d *Directory) Authenticate(ctx context.Context, login, password string) (*models.Account, error) {
	login = strings.TrimSpace(login)
	var account models.Account
	err := d.db.WithContext(ctx).Preload("Roles.Role").
		Where("username = ? OR email = ?", login, normalizeEmail(login)).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !account.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	if account.Status == models.StatusSuspended || account.Status == models.StatusInactive {
		return nil, ErrAccountDisabled
	}

	now := d.now()
	if err := d.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", account.ID).
		UpdateColumn("last_login_at", now).Error; err != nil {
		return nil, err
	}
	account.LastLoginAt = &now
	return &account, nil
}

// AccountFilter narrows ListAccounts. Empty fields match everything.
type AccountFilter struct {
	Role   models.RoleName
	Status models.AccountStatus
	Query  string
}

// ListAccounts returns accounts ordered by creation time.
func (d *Directory) ListAccounts(ctx context.Context, f AccountFilter) ([]models.Account, error) {
	q := d.db.WithContext(ctx).Model(&models.Account{}).Preload("Roles.Role").Order("accounts.created_at asc")
	if f.Role != "" {
		q = q.Joins("JOIN account_roles ON account_roles.account_id = accounts.id").
			Joins("JOIN roles ON roles.id = account_roles.role_id").
			Where("roles.name = ?", f.Role)
	}
	if f.Status != "" {
		q = q.Where("accounts.status = ?", f.Status)
	}
	if f.Query != "" {
		like := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where("LOWER(accounts.username) LIKE ? OR LOWER(accounts.email) LIKE ? OR LOWER(accounts.first_name) LIKE ? OR LOWER(accounts.last_name) LIKE ?",
			like, like, like, like)
	}
	var accounts []models.Account
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// AccountUpdate holds optional self-service changes.
type AccountUpdate struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Email       *string
	Password    *string
}

// UpdateAccount applies the non-nil fields of u.
func (d *Directory) UpdateAccount(ctx context.Context, id string, u AccountUpdate) (*models.Account, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if err := tx.First(&account, "id = ?", id).Error; err != nil {
			return notFound(err, ErrAccountNotFound)
		}
		if u.FirstName != nil {
			account.FirstName = strings.TrimSpace(*u.FirstName)
		}
		if u.LastName != nil {
			account.LastName = strings.TrimSpace(*u.LastName)
		}
		if u.PhoneNumber != nil {
			account.PhoneNumber = strings.TrimSpace(*u.PhoneNumber)
		}
		if u.Email != nil && normalizeEmail(*u.Email) != account.Email {
			email := normalizeEmail(*u.Email)
			var count int64
			if err := tx.Model(&models.Account{}).Where("email = ? AND id <> ?", email, id).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateEmail
			}
			account.Email = email
		}
		if u.Password != nil {
			if err := account.SetPassword(*u.Password); err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
		}
		if err := tx.Omit("Roles").Save(&account).Error; err != nil {
			if models.IsUniqueViolation(err) {
				return ErrDuplicateEmail
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return d.AccountByID(ctx, id)
}

// SetStatus changes the lifecycle status of an account.
func (d *Directory) SetStatus(ctx context.Context, id string, status models.AccountStatus) (*models.Account, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	res := d.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}
	return d.AccountByID(ctx, id)
}

// AssignRole grants a role. Granting a held role is a no-op.
func (d *Directory) AssignRole(ctx context.Context, accountID string, role models.RoleName) (*models.Account, error) {
	if !role.Valid() {
		return nil, ErrUnknownRole
	}
	if _, err := d.AccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	if err := assignRole(d.db.WithContext(ctx), accountID, role, d.now()); err != nil {
		return nil, err
	}
	return d.AccountByID(ctx, accountID)
}

// RevokeRole removes a role. Revoking a role that is not held is a no-op.
func (d *Directory) RevokeRole(ctx context.Context, accountID string, role models.RoleName) (*models.Account, error) {
	if !role.Valid() {
		return nil, ErrUnknownRole
	}
	if _, err := d.AccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	err := d.db.WithContext(ctx).
		Where("account_id = ? AND role_id IN (?)", accountID,
			d.db.Model(&models.Role{}).Select("id").Where("name = ?", role)).
		Delete(&models.AccountRole{}).Error
	if err != nil {
		return nil, err
	}
	return d.AccountByID(ctx, accountID)
}

// DeleteAccount removes an account with its roles, doctor profile and schedules.
// Appointments and visit records are kept as history.
func (d *Directory) DeleteAccount(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Account{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.AccountRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.DoctorProfile{}).Error; err != nil {
			return err
		}
		return tx.Where("doctor_id = ?", id).Delete(&models.DoctorSchedule{}).Error
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
