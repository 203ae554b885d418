package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultRole is assigned to newly registered accounts. Admin accounts
// are promoted out of band.
const DefaultRole = "analyst"

// AuthHandlers handles authentication HTTP endpoints
type AuthHandlers struct {
	db              *sql.DB
	jwtService      *JWTService
	passwordService *PasswordService
	validator       *validator.Validate
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(db *sql.DB, jwtService *JWTService, passwordService *PasswordService) *AuthHandlers {
	return &AuthHandlers{
		db:              db,
		jwtService:      jwtService,
		passwordService: passwordService,
		validator:       validator.New(),
	}
}

// Register handles user registration
// POST /api/auth/register
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.sendValidationError(w, err)
		return
	}

	if err := h.passwordService.ValidatePasswordStrength(req.Password); err != nil {
		h.sendError(w, http.StatusBadRequest, "InvalidPassword", err.Error())
		return
	}

	// Check if username already exists
	var existingID int64
	err := h.db.QueryRow("SELECT id FROM users WHERE username = $1", req.Username).Scan(&existingID)
	if err == nil {
		h.sendError(w, http.StatusConflict, "UsernameExists", "Username already exists")
		return
	} else if err != sql.ErrNoRows {
		log.Printf("Error checking username: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to check username")
		return
	}

	// Check if email already exists
	err = h.db.QueryRow("SELECT id FROM users WHERE email = $1", req.Email).Scan(&existingID)
	if err == nil {
		h.sendError(w, http.StatusConflict, "EmailExists", "Email already exists")
		return
	} else if err != sql.ErrNoRows {
		log.Printf("Error checking email: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to check email")
		return
	}

	passwordHash, err := h.passwordService.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to process password")
		return
	}

	now := time.Now()
	var userID int64
	err = h.db.QueryRow(
		`INSERT INTO users (username, email, password_hash, role, organization, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		req.Username, req.Email, passwordHash, DefaultRole, req.Organization, now,
	).Scan(&userID)
	if err != nil {
		log.Printf("Error creating user: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to create user")
		return
	}

	accessToken, err := h.jwtService.GenerateAccessToken(userID, req.Username, DefaultRole)
	if err != nil {
		log.Printf("Error generating access token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to generate token")
		return
	}

	refreshToken, err := h.jwtService.GenerateRefreshToken(userID)
	if err != nil {
		log.Printf("Error generating refresh token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to generate refresh token")
		return
	}

	expiresAt := time.Now().Add(h.jwtService.GetTokenExpiration())
	h.sendTokenResponse(w, http.StatusCreated, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		UserID:       userID,
		Username:     req.Username,
		Role:         DefaultRole,
	})
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.sendValidationError(w, err)
		return
	}

	var user User
	err := h.db.QueryRow(
		"SELECT id, username, email, password_hash, role, organization FROM users WHERE username = $1",
		req.Username,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.Organization)

	if err == sql.ErrNoRows {
		h.sendError(w, http.StatusUnauthorized, "InvalidCredentials", "Invalid username or password")
		return
	} else if err != nil {
		log.Printf("Error querying user: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to authenticate")
		return
	}

	if !h.passwordService.VerifyPassword(req.Password, user.PasswordHash) {
		h.sendError(w, http.StatusUnauthorized, "InvalidCredentials", "Invalid username or password")
		return
	}

	// Best effort, a failed timestamp update must not block the login
	if _, err := h.db.Exec("UPDATE users SET last_login = $1 WHERE id = $2", time.Now(), user.ID); err != nil {
		log.Printf("Warning: Failed to record last login for user %d: %v", user.ID, err)
	}

	accessToken, err := h.jwtService.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		log.Printf("Error generating access token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to generate token")
		return
	}

	refreshToken, err := h.jwtService.GenerateRefreshToken(user.ID)
	if err != nil {
		log.Printf("Error generating refresh token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to generate refresh token")
		return
	}

	expiresAt := time.Now().Add(h.jwtService.GetTokenExpiration())
	h.sendTokenResponse(w, http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
	})
}

// Refresh handles token refresh
// POST /api/auth/refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	// Get refresh token from Authorization header or body
	var refreshToken string

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			refreshToken = parts[1]
		}
	}

	if refreshToken == "" {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	if refreshToken == "" {
		h.sendError(w, http.StatusBadRequest, "InvalidRequest", "Refresh token required")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "InvalidToken", "Invalid or expired refresh token")
		return
	}

	// Re-read the account so revoked users stop refreshing
	var user User
	err = h.db.QueryRow(
		"SELECT id, username, role FROM users WHERE id = $1",
		claims.UserID,
	).Scan(&user.ID, &user.Username, &user.Role)

	if err == sql.ErrNoRows {
		h.sendError(w, http.StatusUnauthorized, "UserNotFound", "User no longer exists")
		return
	} else if err != nil {
		log.Printf("Error querying user: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to refresh token")
		return
	}

	accessToken, err := h.jwtService.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		log.Printf("Error generating access token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to generate token")
		return
	}

	// Rotate the refresh token
	newRefreshToken, err := h.jwtService.GenerateRefreshToken(user.ID)
	if err != nil {
		log.Printf("Error generating refresh token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to generate refresh token")
		return
	}

	expiresAt := time.Now().Add(h.jwtService.GetTokenExpiration())
	h.sendTokenResponse(w, http.StatusOK, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresAt:    expiresAt,
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
	})
}

// Logout handles user logout
// POST /api/auth/logout
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	// Stateless JWT: logout is client-side token disposal.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Logged out successfully",
	})
}

// Me returns the authenticated account.
// GET /api/auth/me
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r)
	if !ok {
		h.sendError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}

	var user User
	err := h.db.QueryRow(
		"SELECT id, username, email, role, organization, created_at, last_login FROM users WHERE id = $1",
		userID,
	).Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.Organization, &user.CreatedAt, &user.LastLogin)

	if err == sql.ErrNoRows {
		h.sendError(w, http.StatusNotFound, "UserNotFound", "User no longer exists")
		return
	} else if err != nil {
		log.Printf("Error querying user: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to load account")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(user)
}

// Helper methods

func (h *AuthHandlers) sendTokenResponse(w http.ResponseWriter, status int, response TokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func (h *AuthHandlers) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: message,
		Code:    code,
	})
}

func (h *AuthHandlers) sendValidationError(w http.ResponseWriter, err error) {
	var validationErrors []string
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", fe.Field(), getValidationMessage(fe)))
		}
	}

	h.sendError(w, http.StatusBadRequest, "ValidationError", strings.Join(validationErrors, "; "))
}

func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "alphanum":
		return "must contain only alphanumeric characters"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
