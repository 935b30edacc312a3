package handlers

import (
	"github.com/gin-gonic/gin"

	"learnplatform/internal/application/usecase"
)

type SchoolHandler struct {
	schools *usecase.SchoolUseCase
	resp    *Responder
}

func NewSchoolHandler(schools *usecase.SchoolUseCase, resp *Responder) *SchoolHandler {
	return &SchoolHandler{schools: schools, resp: resp}
}

type createSchoolReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	LogoURL     string `json:"logoUrl"`
	Website     string `json:"website"`
	AdminUserID string `json:"adminUserId" binding:"required"`
}

type instructorReq struct {
	UserID string `json:"userId" binding:"required"`
}

// POST /schools
func (h *SchoolHandler) Create(c *gin.Context) {
	var req createSchoolReq
	if !h.resp.bind(c, &req) {
		return
	}
	school, err := h.schools.Create(c.Request.Context(), usecase.SchoolInput{
		Name:        req.Name,
		Description: req.Description,
		LogoURL:     req.LogoURL,
		Website:     req.Website,
		AdminUserID: req.AdminUserID,
	})
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Created(c, school)
}

// GET /schools
func (h *SchoolHandler) List(c *gin.Context) {
	schools, err := h.schools.List(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"schools": schools, "count": len(schools)})
}

// GET /schools/:id
func (h *SchoolHandler) Get(c *gin.Context) {
	school, err := h.schools.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, school)
}

// PUT /schools/:id
func (h *SchoolHandler) Update(c *gin.Context) {
	var changes map[string]any
	if !h.resp.bind(c, &changes) {
		return
	}
	school, err := h.schools.Update(c.Request.Context(), actor(c), c.Param("id"), changes)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, school)
}

// DELETE /schools/:id
func (h *SchoolHandler) Delete(c *gin.Context) {
	if err := h.schools.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "School deleted")
}

// POST /schools/:id/instructors
func (h *SchoolHandler) AddInstructor(c *gin.Context) {
	var req instructorReq
	if !h.resp.bind(c, &req) {
		return
	}
	in, err := h.schools.AddInstructor(c.Request.Context(), actor(c), c.Param("id"), req.UserID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Created(c, in)
}

// DELETE /schools/:id/instructors/:userId
func (h *SchoolHandler) RemoveInstructor(c *gin.Context) {
	if err := h.schools.RemoveInstructor(c.Request.Context(), actor(c), c.Param("id"), c.Param("userId")); err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "Instructor removed")
}

// GET /schools/:id/instructors
func (h *SchoolHandler) ListInstructors(c *gin.Context) {
	instructors, err := h.schools.ListInstructors(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"instructors": instructors, "count": len(instructors)})
}
