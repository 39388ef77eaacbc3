package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/sqlnb/internal/model"
	"github.com/xxxsen/sqlnb/internal/pkg/errcode"
	"github.com/xxxsen/sqlnb/internal/pkg/response"
	"github.com/xxxsen/sqlnb/internal/service"
)

type NotebookHandler struct {
	notebooks *service.NotebookService
}

func NewNotebookHandler(notebooks *service.NotebookService) *NotebookHandler {
	return &NotebookHandler{notebooks: notebooks}
}

type createRequest struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type saveRequest struct {
	Notebook *model.Notebook `json:"notebook"`
	Results  model.Results   `json:"results"`
}

type cellRequest struct {
	Type    model.CellType  `json:"type"`
	AfterID string          `json:"afterId"`
	Content json.RawMessage `json:"content"`
}

type orderRequest struct {
	CellIDs []string `json:"cellIds"`
}

type titleRequest struct {
	Title string `json:"title"`
}

func (h *NotebookHandler) List(c *gin.Context) {
	files, err := h.notebooks.List(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"files": files})
}

func (h *NotebookHandler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Name == "" {
		req.Name = req.Title
	}
	doc, err := h.notebooks.Create(c.Request.Context(), req.Name, req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *NotebookHandler) Get(c *gin.Context) {
	doc, err := h.notebooks.Open(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

// Save stores the posted notebook. ?mode=debounce schedules the write.
func (h *NotebookHandler) Save(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Notebook == nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	doc, err := h.notebooks.Save(c.Request.Context(), c.Param("name"), service.SaveInput{
		Notebook: req.Notebook,
		Results:  req.Results,
		Debounce: c.Query("mode") == "debounce",
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *NotebookHandler) Flush(c *gin.Context) {
	doc, err := h.notebooks.Flush(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *NotebookHandler) Delete(c *gin.Context) {
	if err := h.notebooks.Delete(c.Request.Context(), c.Param("name")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *NotebookHandler) SetTitle(c *gin.Context) {
	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.notebooks.SetTitle(c.Request.Context(), c.Param("name"), req.Title); err != nil {
		handleError(c, err)
		return
	}
	h.Get(c)
}

func (h *NotebookHandler) AddCell(c *gin.Context) {
	var req cellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	content, err := model.DecodeContent(req.Content)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid cell content")
		return
	}
	cell, err := h.notebooks.AddCell(c.Request.Context(), c.Param("name"), req.Type, req.AfterID, content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, cell)
}

func (h *NotebookHandler) UpdateCell(c *gin.Context) {
	var req cellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	content, err := model.DecodeContent(req.Content)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid cell content")
		return
	}
	if err := h.notebooks.UpdateCell(c.Request.Context(), c.Param("name"), c.Param("cell"), content); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *NotebookHandler) DeleteCell(c *gin.Context) {
	if err := h.notebooks.DeleteCell(c.Request.Context(), c.Param("name"), c.Param("cell")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *NotebookHandler) Reorder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if err := h.notebooks.ReorderCells(c.Request.Context(), c.Param("name"), req.CellIDs); err != nil {
		handleError(c, err)
		return
	}
	h.Get(c)
}

// RecordResult accepts the outcome of running a sql cell.
func (h *NotebookHandler) RecordResult(c *gin.Context) {
	var result model.CellResult
	if err := c.ShouldBindJSON(&result); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result.CellID = c.Param("cell")
	if err := h.notebooks.RecordResult(c.Request.Context(), c.Param("name"), result); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}
