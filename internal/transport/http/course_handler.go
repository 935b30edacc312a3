package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"learnplatform/internal/application/usecase"
	"learnplatform/internal/domain"
)

type CourseHandler struct {
	courses *usecase.CourseUseCase
	resp    *Responder
}

func NewCourseHandler(courses *usecase.CourseUseCase, resp *Responder) *CourseHandler {
	return &CourseHandler{courses: courses, resp: resp}
}

type createCourseReq struct {
	Title        string   `json:"title" binding:"required"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Level        string   `json:"level"`
	Language     string   `json:"language"`
	Price        float64  `json:"price" binding:"min=0"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	InstructorID string   `json:"instructorId"`
	SchoolID     string   `json:"schoolId"`
	Tags         []string `json:"tags"`
}

type sectionReq struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type updateSectionReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type lessonReq struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	VideoURL    string `json:"videoUrl"`
	Duration    int    `json:"duration" binding:"min=0"`
	IsPreview   bool   `json:"isPreview"`
}

// POST /courses
func (h *CourseHandler) Create(c *gin.Context) {
	var req createCourseReq
	if !h.resp.bind(c, &req) {
		return
	}
	course, err := h.courses.Create(c.Request.Context(), actor(c).UserID, usecase.CourseInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Level:        req.Level,
		Language:     req.Language,
		Price:        req.Price,
		ThumbnailURL: req.ThumbnailURL,
		InstructorID: req.InstructorID,
		SchoolID:     req.SchoolID,
		Tags:         req.Tags,
	})
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Created(c, course)
}

// GET /courses lists published courses, optionally by category.
func (h *CourseHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	courses, err := h.courses.List(c.Request.Context(), c.Query("category"), string(domain.CoursePublished), limit)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"courses": courses, "count": len(courses)})
}

// GET /admin/courses lists every course, filtered by category or status.
func (h *CourseHandler) AdminList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	courses, err := h.courses.List(c.Request.Context(), c.Query("category"), c.Query("status"), limit)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"courses": courses, "count": len(courses)})
}

// GET /courses/:id
func (h *CourseHandler) Get(c *gin.Context) {
	h.get(c, false)
}

// GET /admin/courses/:id
func (h *CourseHandler) AdminGet(c *gin.Context) {
	h.get(c, true)
}

func (h *CourseHandler) get(c *gin.Context, includeUnpublished bool) {
	outline, err := h.courses.Get(c.Request.Context(), c.Param("id"), includeUnpublished)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, outline)
}

// PUT /courses/:id
func (h *CourseHandler) Update(c *gin.Context) {
	var changes map[string]any
	if !h.resp.bind(c, &changes) {
		return
	}
	course, err := h.courses.Update(c.Request.Context(), c.Param("id"), changes)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, course)
}

// DELETE /courses/:id archives the course.
func (h *CourseHandler) Delete(c *gin.Context) {
	course, err := h.courses.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"message": "Course archived", "course": course})
}

// POST /courses/:id/sections
func (h *CourseHandler) CreateSection(c *gin.Context) {
	var req sectionReq
	if !h.resp.bind(c, &req) {
		return
	}
	section, err := h.courses.CreateSection(c.Request.Context(), c.Param("id"), req.Title, req.Description)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Created(c, section)
}

// PUT /courses/:id/sections/:sectionId
func (h *CourseHandler) UpdateSection(c *gin.Context) {
	var req updateSectionReq
	if !h.resp.bind(c, &req) {
		return
	}
	section, err := h.courses.UpdateSection(c.Request.Context(), c.Param("id"), c.Param("sectionId"), req.Title, req.Description)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, section)
}

// DELETE /courses/:id/sections/:sectionId
func (h *CourseHandler) DeleteSection(c *gin.Context) {
	if err := h.courses.DeleteSection(c.Request.Context(), c.Param("id"), c.Param("sectionId")); err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "Section deleted")
}

// PUT /courses/:id/sections/reorder
func (h *CourseHandler) ReorderSections(c *gin.Context) {
	var changes []domain.OrderChange
	if !h.resp.bind(c, &changes) {
		return
	}
	sections, err := h.courses.ReorderSections(c.Request.Context(), c.Param("id"), changes)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"sections": sections})
}

// POST /courses/:id/sections/:sectionId/lessons
func (h *CourseHandler) CreateLesson(c *gin.Context) {
	var req lessonReq
	if !h.resp.bind(c, &req) {
		return
	}
	lesson, err := h.courses.CreateLesson(c.Request.Context(), c.Param("id"), c.Param("sectionId"), usecase.LessonInput{
		Title:       req.Title,
		Description: req.Description,
		VideoURL:    req.VideoURL,
		Duration:    req.Duration,
		IsPreview:   req.IsPreview,
	})
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Created(c, lesson)
}

// PUT /courses/:id/lessons/:lessonId
func (h *CourseHandler) UpdateLesson(c *gin.Context) {
	var changes map[string]any
	if !h.resp.bind(c, &changes) {
		return
	}
	lesson, err := h.courses.UpdateLesson(c.Request.Context(), c.Param("id"), c.Param("lessonId"), changes)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, lesson)
}

// DELETE /courses/:id/lessons/:lessonId
func (h *CourseHandler) DeleteLesson(c *gin.Context) {
	if err := h.courses.DeleteLesson(c.Request.Context(), c.Param("id"), c.Param("lessonId")); err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.Message(c, "Lesson deleted")
}

// PUT /courses/:id/lessons/reorder
func (h *CourseHandler) ReorderLessons(c *gin.Context) {
	var changes []domain.OrderChange
	if !h.resp.bind(c, &changes) {
		return
	}
	lessons, err := h.courses.ReorderLessons(c.Request.Context(), c.Param("id"), changes)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, gin.H{"lessons": lessons})
}
