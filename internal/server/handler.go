package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/symptra/internal/classify"
	"github.com/ppiankov/symptra/internal/log"
	"github.com/ppiankov/symptra/internal/model"
)

// maxBodyBytes bounds a request body. Texts of any length below it are accepted.
const maxBodyBytes = 1 << 20

// SubmitRequest is the body of POST /api/v1/symptoms/submit
type SubmitRequest struct {
	Text string `json:"text"`
}

// DiseaseResponse is the body of GET /api/v1/diseases/:name
type DiseaseResponse struct {
	Disease string `json:"disease"`
	Known   bool   `json:"known"`
	model.Details
}

// ModelResponse describes the active bundle
type ModelResponse struct {
	Version  string            `json:"version"`
	Classes  []string          `json:"classes"`
	Features int               `json:"features"`
	Meta     classify.Metadata `json:"meta"`
}

// Handler holds the route handlers
type Handler struct {
	svc Service
}

// NewHandler creates a handler over svc
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Submit diagnoses the submitted text
func (h *Handler) Submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	resp, err := h.svc.Diagnose(c.Request.Context(), req.Text)
	if err != nil {
		log.Error("diagnosis failed", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model unavailable"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Disease returns description and precautions for a disease name
func (h *Handler) Disease(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "disease name is required"})
		return
	}

	details, known := h.svc.DiseaseDetails(name)
	c.JSON(http.StatusOK, DiseaseResponse{Disease: name, Known: known, Details: details})
}

// ModelInfo describes the active bundle
func (h *Handler) ModelInfo(c *gin.Context) {
	b := h.svc.Model()
	if b == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not loaded"})
		return
	}
	c.JSON(http.StatusOK, modelResponse(b))
}

// Retrain rebuilds the model from the reference data
func (h *Handler) Retrain(c *gin.Context) {
	b, err := h.svc.Retrain(c.Request.Context())
	if err != nil {
		log.Error("retrain failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, modelResponse(b))
}

// Health reports liveness and whether a model is loaded
func (h *Handler) Health(c *gin.Context) {
	status := gin.H{"status": "ok", "model_loaded": false}
	if b := h.svc.Model(); b != nil {
		status["model_loaded"] = true
		status["model_version"] = b.Meta.Version
	}
	c.JSON(http.StatusOK, status)
}

func modelResponse(b *classify.Bundle) ModelResponse {
	return ModelResponse{
		Version:  b.Meta.Version,
		Classes:  b.Forest.Classes,
		Features: len(b.Vocabulary),
		Meta:     b.Meta,
	}
}
