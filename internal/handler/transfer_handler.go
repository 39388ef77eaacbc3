package handler

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/sqlnb/internal/pkg/errcode"
	"github.com/xxxsen/sqlnb/internal/pkg/response"
	"github.com/xxxsen/sqlnb/internal/service"
)

type TransferHandler struct {
	notebooks     *service.NotebookService
	maxUploadSize int64
}

func NewTransferHandler(notebooks *service.NotebookService, maxUploadSize int64) *TransferHandler {
	return &TransferHandler{notebooks: notebooks, maxUploadSize: maxUploadSize}
}

type textRequest struct {
	Text string `json:"text"`
}

func (h *TransferHandler) Export(c *gin.Context) {
	format, err := service.ParseFormat(c.Query("format"))
	if err != nil {
		handleError(c, err)
		return
	}
	payload, err := h.notebooks.Export(c.Request.Context(), c.Param("name"), format)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", payload.FileName))
	c.Data(http.StatusOK, payload.ContentType, []byte(payload.Body))
}

// Import takes either a multipart "file" field or the raw request body.
// The format comes from ?format=, then from the uploaded file extension.
func (h *TransferHandler) Import(c *gin.Context) {
	formatHint := c.Query("format")
	var text string
	if file, err := c.FormFile("file"); err == nil {
		if h.maxUploadSize > 0 && file.Size > h.maxUploadSize {
			response.Error(c, errcode.ErrImportFailed, "file too large (max "+formatUploadLimit(h.maxUploadSize)+")")
			return
		}
		if formatHint == "" {
			formatHint = strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")
		}
		opened, err := file.Open()
		if err != nil {
			response.Error(c, errcode.ErrImportFailed, "failed to open file")
			return
		}
		defer opened.Close()
		data, err := io.ReadAll(opened)
		if err != nil {
			response.Error(c, errcode.ErrImportFailed, "failed to read file")
			return
		}
		text = string(data)
	} else {
		body := c.Request.Body
		if h.maxUploadSize > 0 {
			body = http.MaxBytesReader(c.Writer, body, h.maxUploadSize)
		}
		data, err := io.ReadAll(body)
		if err != nil {
			response.Error(c, errcode.ErrImportFailed, "failed to read request body")
			return
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		response.Error(c, errcode.ErrInvalid, "empty document")
		return
	}
	format, err := service.ParseFormat(formatHint)
	if err != nil {
		handleError(c, err)
		return
	}
	doc, err := h.notebooks.Import(c.Request.Context(), c.Query("name"), format, text)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

// Validate checks text from the YAML editor without storing anything.
func (h *TransferHandler) Validate(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	response.Success(c, h.notebooks.Validate(req.Text))
}

func (h *TransferHandler) GetText(c *gin.Context) {
	text, err := h.notebooks.Text(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"name": c.Param("name"), "text": text})
}

func (h *TransferHandler) ApplyText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.notebooks.ApplyText(c.Request.Context(), c.Param("name"), req.Text)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}
