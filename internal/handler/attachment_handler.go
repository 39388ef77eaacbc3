package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/sqlnb/internal/attachment"
	"github.com/xxxsen/sqlnb/internal/model"
	"github.com/xxxsen/sqlnb/internal/pkg/errcode"
	"github.com/xxxsen/sqlnb/internal/pkg/response"
	"github.com/xxxsen/sqlnb/internal/service"
)

// AttachmentHandler stores uploads for image and file cells. The cell keeps
// only the url of the stored payload.
type AttachmentHandler struct {
	store     attachment.Store
	notebooks *service.NotebookService
	maxSize   int64
}

func NewAttachmentHandler(store attachment.Store, notebooks *service.NotebookService, maxSize int64) *AttachmentHandler {
	return &AttachmentHandler{store: store, notebooks: notebooks, maxSize: maxSize}
}

func (h *AttachmentHandler) Upload(c *gin.Context) {
	att, ok := h.save(c)
	if !ok {
		return
	}
	response.Success(c, att)
}

// UploadCell stores the upload and appends an image cell for images and a
// file cell for anything else, after ?afterId= when given.
func (h *AttachmentHandler) UploadCell(c *gin.Context) {
	att, ok := h.save(c)
	if !ok {
		return
	}
	cellType := model.CellTypeFile
	if strings.HasPrefix(att.MimeType, "image/") {
		cellType = model.CellTypeImage
	}
	cell, err := h.notebooks.AddCell(c.Request.Context(), c.Param("name"), cellType, c.Query("afterId"), att)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cell)
}

func (h *AttachmentHandler) Get(c *gin.Context) {
	if h.store == nil || h.store.Type() != "local" {
		c.Status(http.StatusNotFound)
		return
	}
	key := c.Param("key")
	file, err := h.store.Open(c.Request.Context(), key)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer file.Close()
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "private, max-age=86400")
	_, _ = io.Copy(c.Writer, file)
}

func (h *AttachmentHandler) save(c *gin.Context) (*model.Attachment, bool) {
	if h.store == nil {
		response.Error(c, errcode.ErrNotFound, "attachments are disabled")
		return nil, false
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "file is required")
		return nil, false
	}
	if h.maxSize > 0 && file.Size > h.maxSize {
		response.Error(c, errcode.ErrInvalid, "file too large (max "+formatUploadLimit(h.maxSize)+")")
		return nil, false
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "failed to open file")
		return nil, false
	}
	defer opened.Close()
	contentType, err := sniffContentType(opened)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "failed to read file")
		return nil, false
	}
	key := attachment.NewKey(getUserID(c), file.Filename)
	if err := h.store.Save(c.Request.Context(), key, opened, file.Size); err != nil {
		handleError(c, err)
		return nil, false
	}
	return &model.Attachment{
		URL:      h.store.URL(key, requestBaseURL(c)),
		Filename: file.Filename,
		MimeType: contentType,
		Size:     file.Size,
	}, true
}

func sniffContentType(file attachment.ReadSeekCloser) (string, error) {
	buf := make([]byte, 512)
	read, err := file.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:read]), nil
}

func requestBaseURL(c *gin.Context) string {
	proto := c.GetHeader("X-Forwarded-Proto")
	if proto == "" {
		if c.Request.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return proto + "://" + host
}
