package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/shared/utils"
)

// Updater is the bundle lifecycle the API exposes.
type Updater interface {
	List() []bundle.Version
	Status() bundle.Status
	Save(ctx context.Context, id string, payload *bundle.Payload) error
	Use(id string) error
	UseDeferred(id string) error
	Activate() error
	Rollback() error
	MarkGood(id string) error
	Delete(id string) error
	Prune() []string
}

// Handlers contains the bundle HTTP handlers
type Handlers struct {
	updater         Updater
	maxPayloadBytes int64
	logger          *zap.Logger
}

// NewHandlers creates a new handler set. Save bodies larger than
// maxPayloadBytes are rejected; zero selects utils.MaxPayloadSize.
func NewHandlers(updater Updater, maxPayloadBytes int64, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = utils.MaxPayloadSize
	}
	return &Handlers{
		updater:         updater,
		maxPayloadBytes: maxPayloadBytes,
		logger:          logger.Named("api"),
	}
}

// Register mounts the bundle routes on r. saveMiddleware runs ahead of Save
// only.
func (h *Handlers) Register(r gin.IRouter, saveMiddleware ...gin.HandlerFunc) {
	g := r.Group("/api/bundles")
	g.GET("", h.List)
	g.GET("/status", h.Status)
	g.POST("", append(saveMiddleware, h.Save)...)
	g.POST("/activate", h.Activate)
	g.POST("/prune", h.Prune)
	g.POST("/rollback", h.Rollback)
	g.POST("/:version/use", h.Use)
	g.POST("/:version/good", h.MarkGood)
	g.DELETE("/:version", h.Delete)
}

// List returns base followed by every installed version
func (h *Handlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"versions": h.updater.List(),
	})
}

// Status returns the activation state
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.updater.Status())
}

// Save installs the version carried in the request body
func (h *Handlers) Save(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, "payload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		h.fail(c, http.StatusBadRequest, "failed to read payload")
		return
	}

	var payload bundle.Payload
	if err := sonic.Unmarshal(body, &payload); err != nil {
		h.fail(c, http.StatusBadRequest, "malformed payload")
		return
	}

	if err := h.updater.Save(c.Request.Context(), payload.Version, &payload); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"version": payload.Version,
	})
}

// Use activates a version; ?defer=true skips the host reload
func (h *Handlers) Use(c *gin.Context) {
	id := c.Param("version")

	var err error
	if deferred, _ := strconv.ParseBool(c.Query("defer")); deferred {
		err = h.updater.UseDeferred(id)
	} else {
		err = h.updater.Use(id)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.updater.Status())
}

// Activate reloads the host from the active version
func (h *Handlers) Activate(c *gin.Context) {
	if err := h.updater.Activate(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.updater.Status())
}

// Rollback re-activates the previous version
func (h *Handlers) Rollback(c *gin.Context) {
	if err := h.updater.Rollback(); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.updater.Status())
}

// MarkGood confirms the active version
func (h *Handlers) MarkGood(c *gin.Context) {
	if err := h.updater.MarkGood(c.Param("version")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.updater.Status())
}

// Delete removes an installed version
func (h *Handlers) Delete(c *gin.Context) {
	id := c.Param("version")
	if err := h.updater.Delete(id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version": id,
	})
}

// Prune removes versions that are neither base, active nor previous
func (h *Handlers) Prune(c *gin.Context) {
	removed := h.updater.Prune()
	if removed == nil {
		removed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
	})
}

// respondError maps domain errors onto status codes.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Bundle operation failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
	}
	h.fail(c, status, err.Error())
}

func (h *Handlers) fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bundle.ErrExtraction):
		return http.StatusBadRequest
	case errors.Is(err, bundle.ErrIncompatible), errors.Is(err, bundle.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, bundle.ErrPersistence):
		return http.StatusInternalServerError
	default:
		// The state was committed but the host could not be reached.
		return http.StatusBadGateway
	}
}
