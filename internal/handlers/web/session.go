package web

import (
	"net/http"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/repositories"
	"agora/internal/response"
	"agora/internal/services"
	"agora/internal/validation"

	"go.uber.org/zap"
)

// SessionHandler handles registration and login.
type SessionHandler struct {
	users      repositories.UserRepository
	auth       *middleware.Authenticator
	bcryptCost int
	logger     *zap.Logger
}

// NewSessionHandler creates the session handler.
func NewSessionHandler(users repositories.UserRepository, auth *middleware.Authenticator, bcryptCost int, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{users: users, auth: auth, bcryptCost: bcryptCost, logger: logger}
}

type registerForm struct {
	Username string `json:"username" validate:"required,min=3,max=255,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginForm struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionPayload struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /register.
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var form registerForm
	if err := decodeJSON(r, &form); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if details := validation.Struct(form); details != nil {
		response.Error(w, h.logger, services.NewValidationError("invalid registration", details))
		return
	}

	user := &models.User{Username: form.Username, Email: form.Email}
	if err := user.SetPassword(form.Password, h.bcryptCost); err != nil {
		response.Error(w, h.logger, services.NewInternalError("could not hash password", err))
		return
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if repositories.IsUniqueViolation(err) {
			response.Error(w, h.logger, services.NewConflictError("email already registered", "duplicate_email"))
			return
		}
		response.Error(w, h.logger, services.NewInternalError("could not create user", err))
		return
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		response.Error(w, h.logger, services.NewInternalError("could not issue token", err))
		return
	}
	response.Created(w, sessionPayload{Token: token, User: user})
}

// Login handles POST /login.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := decodeJSON(r, &form); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if details := validation.Struct(form); details != nil {
		response.Error(w, h.logger, services.NewValidationError("invalid login", details))
		return
	}

	user, err := h.users.GetByUsername(r.Context(), form.Username)
	if err != nil || !user.CheckPassword(form.Password) {
		response.Error(w, h.logger, &services.ServiceError{
			Type:       "UNAUTHORIZED",
			Message:    "invalid credentials",
			StatusCode: http.StatusUnauthorized,
		})
		return
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		response.Error(w, h.logger, services.NewInternalError("could not issue token", err))
		return
	}
	response.JSON(w, http.StatusOK, sessionPayload{Token: token, User: user})
}
