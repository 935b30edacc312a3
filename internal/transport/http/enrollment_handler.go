package handlers

import (
	"github.com/gin-gonic/gin"

	"learnplatform/internal/application/usecase"
	"learnplatform/internal/domain"
)

type EnrollmentHandler struct {
	enrollments *usecase.EnrollmentUseCase
	resp        *Responder
}

func NewEnrollmentHandler(enrollments *usecase.EnrollmentUseCase, resp *Responder) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, resp: resp}
}

type progressReq struct {
	CourseID     string `json:"courseId" binding:"required"`
	LessonID     string `json:"lessonId" binding:"required"`
	Status       string `json:"status" binding:"required"`
	LastPosition int    `json:"lastPosition" binding:"min=0"`
}

// POST /courses/:id/enroll
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), actor(c).UserID, c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Created(c, enrollment)
}

// GET /enrollments
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	enrollments, err := h.enrollments.ListMine(c.Request.Context(), actor(c).UserID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"enrollments": enrollments, "count": len(enrollments)})
}

// GET /enrollments/:courseId
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), actor(c).UserID, c.Param("courseId"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, enrollment)
}

// GET /courses/:id/students
func (h *EnrollmentHandler) Students(c *gin.Context) {
	students, err := h.enrollments.Students(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"students": students, "count": len(students)})
}

// PUT /progress
func (h *EnrollmentHandler) UpdateProgress(c *gin.Context) {
	var req progressReq
	if !h.resp.bind(c, &req) {
		return
	}
	progress, err := h.enrollments.UpdateProgress(c.Request.Context(), actor(c).UserID, usecase.ProgressInput{
		CourseID:     req.CourseID,
		LessonID:     req.LessonID,
		Status:       domain.LessonStatus(req.Status),
		LastPosition: req.LastPosition,
	})
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, progress)
}

// GET /progress/:courseId
func (h *EnrollmentHandler) GetProgress(c *gin.Context) {
	progress, err := h.enrollments.GetProgress(c.Request.Context(), actor(c).UserID, c.Param("courseId"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, progress)
}
