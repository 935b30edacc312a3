package handlers

import (
	"github.com/gin-gonic/gin"

	"learnplatform/internal/application/usecase"
)

type UploadHandler struct {
	uploads *usecase.UploadUseCase
	resp    *Responder
}

func NewUploadHandler(uploads *usecase.UploadUseCase, resp *Responder) *UploadHandler {
	return &UploadHandler{uploads: uploads, resp: resp}
}

type presignReq struct {
	UploadType  string `json:"uploadType" binding:"required,oneof=video thumbnail"`
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// POST /uploads/presign
func (h *UploadHandler) Presign(c *gin.Context) {
	var req presignReq
	if !h.resp.bind(c, &req) {
		return
	}
	ticket, err := h.uploads.Presign(c.Request.Context(), req.UploadType, req.FileName, req.ContentType)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	h.resp.OK(c, ticket)
}
