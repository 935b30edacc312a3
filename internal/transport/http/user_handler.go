package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"learnplatform/internal/application/usecase"
)

type UserHandler struct {
	users *usecase.UserUseCase
	auth  *usecase.AuthUseCase
	resp  *Responder
}

func NewUserHandler(users *usecase.UserUseCase, auth *usecase.AuthUseCase, resp *Responder) *UserHandler {
	return &UserHandler{users: users, auth: auth, resp: resp}
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type setRolesReq struct {
	Roles []string `json:"roles" binding:"required"`
}

type setStatusReq struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// GET /users/me
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), actor(c).UserID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, user)
}

// PUT /users/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var changes map[string]any
	if !h.resp.bind(c, &changes) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), actor(c).UserID, changes)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, user)
}

// POST /users/me/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordReq
	if !h.resp.bind(c, &req) {
		return
	}
	err := h.auth.ChangePassword(c.Request.Context(), actor(c).UserID, sessionID(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "Password changed")
}

// DELETE /users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "User deleted")
}

// GET /admin/users
func (h *UserHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	users, err := h.users.List(c.Request.Context(), c.Query("role"), limit)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"users": users, "count": len(users)})
}

// GET /admin/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, user)
}

// PUT /admin/users/:id/roles
func (h *UserHandler) SetRoles(c *gin.Context) {
	var req setRolesReq
	if !h.resp.bind(c, &req) {
		return
	}
	user, err := h.users.SetRoles(c.Request.Context(), c.Param("id"), req.Roles)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, user)
}

// PUT /admin/users/:id/status
func (h *UserHandler) SetStatus(c *gin.Context) {
	var req setStatusReq
	if !h.resp.bind(c, &req) {
		return
	}
	user, err := h.users.SetStatus(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, user)
}
