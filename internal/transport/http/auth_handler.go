package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"learnplatform/internal/application/usecase"
	"learnplatform/internal/domain"
)

type AuthHandler struct {
	auth *usecase.AuthUseCase
	resp *Responder
}

func NewAuthHandler(auth *usecase.AuthUseCase, resp *Responder) *AuthHandler {
	return &AuthHandler{auth: auth, resp: resp}
}

type registerReq struct {
	Email     string `json:"email" binding:"required,email"`
	Username  string `json:"username" binding:"required,min=3,max=30"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// loginReq takes either an email or a username.
type loginReq struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type logoutReq struct {
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
}

type forgotPasswordReq struct {
	Email string `json:"email" binding:"required,email"`
}

type resetTokenReq struct {
	Token string `json:"token" binding:"required"`
}

type resetPasswordReq struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if !h.resp.bind(c, &req) {
		return
	}
	res, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, device(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Created(c, res)
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if !h.resp.bind(c, &req) {
		return
	}
	identifier := strings.TrimSpace(req.Email)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Username)
	}
	if identifier == "" {
		h.resp.Error(c, domain.Validation("Email or username is required"))
		return
	}
	res, err := h.auth.Login(c.Request.Context(), identifier, req.Password, device(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, res)
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshReq
	if !h.resp.bind(c, &req) {
		return
	}
	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, pair)
}

// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutReq
	if c.Request.ContentLength != 0 && !h.resp.bind(c, &req) {
		return
	}
	err := h.auth.Logout(c.Request.Context(), actor(c).UserID, sessionID(c), req.RefreshToken, req.SessionID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "Logged out")
}

// POST /auth/logout-all
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	if err := h.auth.LogoutAll(c.Request.Context(), actor(c).UserID); err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "Logged out from all sessions")
}

// GET /auth/sessions
func (h *AuthHandler) Sessions(c *gin.Context) {
	current := sessionID(c)
	sessions, err := h.auth.Sessions(c.Request.Context(), actor(c).UserID, current)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	out := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, gin.H{
			"sessionId":  s.ID,
			"device":     s.Device,
			"createdAt":  s.CreatedAt,
			"lastUsedAt": s.LastUsedAt,
			"expiresAt":  s.ExpiresAt,
			"current":    s.ID == current,
		})
	}
	h.resp.OK(c, gin.H{"sessions": out})
}

// DELETE /auth/sessions/:sessionId
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	if err := h.auth.RevokeSession(c.Request.Context(), actor(c).UserID, c.Param("sessionId")); err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "Session revoked")
}

// POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordReq
	if !h.resp.bind(c, &req) {
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "If the email is registered, a reset link has been sent")
}

// POST /auth/verify-reset-token
func (h *AuthHandler) VerifyResetToken(c *gin.Context) {
	var req resetTokenReq
	if !h.resp.bind(c, &req) {
		return
	}
	t, err := h.auth.VerifyResetToken(c.Request.Context(), req.Token)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"valid": true, "email": t.Email, "expiresAt": t.ExpiresAt})
}

// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordReq
	if !h.resp.bind(c, &req) {
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "Password has been reset")
}
