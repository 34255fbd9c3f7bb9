package handlers

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medibook-server/internal/directory"
	"medibook-server/internal/models"
	"medibook-server/internal/utils"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Dir         *directory.Directory
	Tokens      *utils.TokenService
	AdminSecret string
	Log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler. An empty adminSecret disables
// admin self-registration.
func NewAuthHandler(dir *directory.Directory, tokens *utils.TokenService, adminSecret string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{Dir: dir, Tokens: tokens, AdminSecret: adminSecret, Log: logger}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	FirstName   string `json:"firstName" binding:"max=100"`
	LastName    string `json:"lastName" binding:"max=100"`
	PhoneNumber string `json:"phoneNumber" binding:"max=30"`
}

func (r RegisterRequest) account() directory.NewAccount {
	return directory.NewAccount{
		Username:    strings.TrimSpace(r.Username),
		Email:       r.Email,
		Password:    r.Password,
		FirstName:   strings.TrimSpace(r.FirstName),
		LastName:    strings.TrimSpace(r.LastName),
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
	}
}

// DoctorRegisterRequest adds the practitioner profile to a registration.
type DoctorRegisterRequest struct {
	RegisterRequest
	Specialization  string  `json:"specialization" binding:"required,max=100"`
	Qualification   string  `json:"qualification" binding:"max=255"`
	ExperienceYears int     `json:"experienceYears" binding:"min=0,max=80"`
	ConsultationFee float64 `json:"consultationFee" binding:"min=0"`
	Hospital        string  `json:"hospital" binding:"max=255"`
	Bio             string  `json:"bio"`
}

// AuthResponse is returned by registration and login.
type AuthResponse struct {
	Token     string                  `json:"token"`
	TokenType string                  `json:"tokenType"`
	ExpiresIn int64                   `json:"expiresIn"`
	User      models.AccountSanitized `json:"user"`
}

func (h *AuthHandler) tokenFor(account *models.Account) (*AuthResponse, error) {
	roles := account.RoleNames()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	token, err := h.Tokens.Issue(account.Username, account.ID, names)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(h.Tokens.TTL().Seconds()),
		User:      account.Sanitize(),
	}, nil
}

func (h *AuthHandler) register(c *gin.Context, in directory.NewAccount, roles []models.RoleName, profile *models.DoctorProfile, message string) {
	account, err := h.Dir.Register(c.Request.Context(), in, roles, profile)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	resp, err := h.tokenFor(account)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.Log.Info().Str("account_id", account.ID).Interface("roles", resp.User.Roles).Msg("account registered")
	utils.Created(c, message, resp)
}

// Register handles patient registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	h.register(c, req.account(), []models.RoleName{models.RoleUser}, nil, "User registered successfully")
}

// RegisterDoctor handles doctor registration. The profile starts available
// and unverified.
func (h *AuthHandler) RegisterDoctor(c *gin.Context) {
	var req DoctorRegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	profile := &models.DoctorProfile{
		Specialization:  strings.TrimSpace(req.Specialization),
		Qualification:   strings.TrimSpace(req.Qualification),
		ExperienceYears: req.ExperienceYears,
		ConsultationFee: req.ConsultationFee,
		Hospital:        strings.TrimSpace(req.Hospital),
		Bio:             strings.TrimSpace(req.Bio),
		IsAvailable:     true,
	}
	h.register(c, req.account(), []models.RoleName{models.RoleUser, models.RoleDoctor}, profile, "Doctor registered successfully")
}

// RegisterAdmin creates an administrator. The X-Admin-Secret header must match
// the configured registration secret.
func (h *AuthHandler) RegisterAdmin(c *gin.Context) {
	if h.AdminSecret == "" {
		utils.Forbidden(c, "Admin registration is disabled")
		return
	}
	given := c.GetHeader("X-Admin-Secret")
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.AdminSecret)) != 1 {
		h.Log.Warn().Str("client_ip", c.ClientIP()).Msg("admin registration with a wrong secret")
		utils.Forbidden(c, "Invalid admin registration secret")
		return
	}
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	h.register(c, req.account(), []models.RoleName{models.RoleUser, models.RoleAdmin}, nil, "Admin registered successfully")
}

// LoginRequest represents the request body for user login. Login may be a
// username or an email; the username and email fields are accepted as aliases.
type LoginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	login := firstNonEmpty(req.Login, req.Username, req.Email)
	if login == "" {
		utils.BadRequest(c, "Username or email is required")
		return
	}

	account, err := h.Dir.Authenticate(c.Request.Context(), login, req.Password)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	resp, err := h.tokenFor(account)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Login successful", resp)
}

// GetProfile returns the caller's own account.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	account, err := h.Dir.AccountByID(c.Request.Context(), id.AccountID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Profile retrieved successfully", account.Sanitize())
}

// UpdateProfileRequest represents the request body for updating one's own account.
type UpdateProfileRequest struct {
	FirstName   *string `json:"firstName" binding:"omitempty,max=100"`
	LastName    *string `json:"lastName" binding:"omitempty,max=100"`
	PhoneNumber *string `json:"phoneNumber" binding:"omitempty,max=30"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Password    *string `json:"password" binding:"omitempty,min=8,max=72"`
}

// UpdateProfile updates the caller's own account.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	id, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	account, err := h.Dir.UpdateAccount(c.Request.Context(), id.AccountID, directory.AccountUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Profile updated successfully", account.Sanitize())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
