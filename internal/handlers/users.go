package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medibook-server/internal/directory"
	"medibook-server/internal/middleware"
	"medibook-server/internal/models"
	"medibook-server/internal/utils"
)

// UserHandler handles account administration.
type UserHandler struct {
	Dir *directory.Directory
	Log zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(dir *directory.Directory, logger zerolog.Logger) *UserHandler {
	return &UserHandler{Dir: dir, Log: logger}
}

func sanitizeAll(accounts []models.Account) []models.AccountSanitized {
	out := make([]models.AccountSanitized, len(accounts))
	for i := range accounts {
		out[i] = accounts[i].Sanitize()
	}
	return out
}

// GetUsers lists accounts, optionally narrowed by ?role=&status=&q=.
func (h *UserHandler) GetUsers(c *gin.Context) {
	filter := directory.AccountFilter{Query: c.Query("q")}
	if r := c.Query("role"); r != "" {
		filter.Role = models.RoleName(r)
		if !filter.Role.Valid() {
			respondError(c, h.Log, directory.ErrUnknownRole)
			return
		}
	}
	if s := c.Query("status"); s != "" {
		filter.Status = models.AccountStatus(s)
		if !filter.Status.Valid() {
			respondError(c, h.Log, directory.ErrInvalidStatus)
			return
		}
	}
	accounts, err := h.Dir.ListAccounts(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Users fetched successfully", sanitizeAll(accounts))
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	account, err := h.Dir.AccountByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "User fetched successfully", account.Sanitize())
}

// UpdateUserRequest represents the request body for updating a user by an admin.
// Passwords are changed by their owner through the profile endpoint.
type UpdateUserRequest struct {
	FirstName   *string `json:"firstName" binding:"omitempty,max=100"`
	LastName    *string `json:"lastName" binding:"omitempty,max=100"`
	PhoneNumber *string `json:"phoneNumber" binding:"omitempty,max=30"`
	Email       *string `json:"email" binding:"omitempty,email"`
}

// UpdateUser handles updating a user by ID (admin).
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	account, err := h.Dir.UpdateAccount(c.Request.Context(), c.Param("id"), directory.AccountUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "User updated successfully", account.Sanitize())
}

// UpdateStatusRequest represents the request body for changing an account status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateUserStatus activates, suspends or deactivates an account.
func (h *UserHandler) UpdateUserStatus(c *gin.Context) {
	admin, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	target := c.Param("id")
	if target == admin.AccountID {
		utils.Forbidden(c, "You cannot change the status of your own account")
		return
	}
	account, err := h.Dir.SetStatus(c.Request.Context(), target, models.AccountStatus(req.Status))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.Log.Info().Str("admin_id", admin.AccountID).Str("account_id", target).Str("status", req.Status).Msg("account status changed")
	utils.Success(c, "User status updated successfully", account.Sanitize())
}

// AssignRoleRequest represents the request body for granting a role.
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// canManageRole reports whether the caller may grant or revoke role. Only a
// super administrator manages administrator roles.
func canManageRole(id middleware.Identity, role models.RoleName) bool {
	if role == models.RoleAdmin || role == models.RoleSuperAdmin {
		return id.HasAuthority(models.RoleSuperAdmin)
	}
	return true
}

// AssignRole grants a role to an account.
func (h *UserHandler) AssignRole(c *gin.Context) {
	admin, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req AssignRoleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	role := models.RoleName(req.Role)
	if !canManageRole(admin, role) {
		utils.Forbidden(c, "Only a super administrator can grant administrator roles")
		return
	}
	account, err := h.Dir.AssignRole(c.Request.Context(), c.Param("id"), role)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.Log.Info().Str("admin_id", admin.AccountID).Str("account_id", account.ID).Str("role", req.Role).Msg("role assigned")
	utils.Success(c, "Role assigned successfully", account.Sanitize())
}

// RevokeRole removes the :role role from an account.
func (h *UserHandler) RevokeRole(c *gin.Context) {
	admin, ok := requireIdentity(c)
	if !ok {
		return
	}
	role := models.RoleName(c.Param("role"))
	if !canManageRole(admin, role) {
		utils.Forbidden(c, "Only a super administrator can revoke administrator roles")
		return
	}
	account, err := h.Dir.RevokeRole(c.Request.Context(), c.Param("id"), role)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.Log.Info().Str("admin_id", admin.AccountID).Str("account_id", account.ID).Str("role", string(role)).Msg("role revoked")
	utils.Success(c, "Role revoked successfully", account.Sanitize())
}

// DeleteUser handles deleting a user by ID (admin). Appointments and visit
// records are kept for the other party.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	admin, ok := requireIdentity(c)
	if !ok {
		return
	}
	target := c.Param("id")
	if target == admin.AccountID {
		utils.Forbidden(c, "You cannot delete your own account")
		return
	}
	if err := h.Dir.DeleteAccount(c.Request.Context(), target); err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.Log.Info().Str("admin_id", admin.AccountID).Str("account_id", target).Msg("account deleted")
	utils.Success(c, "User deleted successfully", nil)
}

// VerifyDoctorRequest represents the request body for (un)verifying a doctor.
// An empty body verifies.
type VerifyDoctorRequest struct {
	Verified *bool `json:"verified"`
}

// VerifyDoctor sets a doctor's verified flag.
func (h *UserHandler) VerifyDoctor(c *gin.Context) {
	var req VerifyDoctorRequest
	if c.Request.ContentLength > 0 && !utils.BindAndValidate(c, &req) {
		return
	}
	verified := true
	if req.Verified != nil {
		verified = *req.Verified
	}
	profile, err := h.Dir.SetDoctorVerified(c.Request.Context(), c.Param("id"), verified)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Doctor verification updated successfully", profile.View())
}
