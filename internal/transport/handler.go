package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-plate-recognizer/internal/config"
	apperrors "go-plate-recognizer/internal/errors"
	"go-plate-recognizer/internal/logger"
	"go-plate-recognizer/internal/observer"
	"go-plate-recognizer/internal/service"
	"go-plate-recognizer/pkg/models"
)

const version = "1.0.0"

// Handler serves the recognition API.
type Handler struct {
	svc     service.PlateRecognitionService
	metrics *observer.MetricsObserver
	hub     *Hub
	cfg     *config.Config
}

// NewHandler builds the gin engine. metrics and hub are optional.
func NewHandler(svc service.PlateRecognitionService, metrics *observer.MetricsObserver, hub *Hub, cfg *config.Config) http.Handler {
	h := &Handler{svc: svc, metrics: metrics, hub: hub, cfg: cfg}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)
	r.GET("/metrics", h.metricsSnapshot)
	r.POST("/recognize", h.recognizeURL)
	r.POST("/recognize/upload", h.recognizeUpload)
	r.POST("/recognize/batch", h.recognizeBatch)

	sessions := r.Group("/sessions")
	sessions.POST("", h.openSession)
	sessions.POST("/:id/frames", h.addFrame)
	sessions.GET("/:id/counters", h.counters)
	sessions.GET("/:id/readings", h.sessionReadings)
	sessions.DELETE("/:id", h.closeSession)

	r.GET("/readings", h.findReadings)
	if hub != nil {
		r.GET("/events", hub.Serve)
	}
	return r
}

func (h *Handler) withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

func (h *Handler) recognizeURL(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	var req models.RecognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request format", err))
		return
	}

	res, err := h.svc.RecognizeURL(ctx, req.URL, req.Options)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) recognizeUpload(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	img, name, err := readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}
	opts, err := optionsField(c)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.svc.RecognizeImage(ctx, img, name, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) recognizeBatch(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	var req models.BatchRecognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request format", err))
		return
	}

	res, err := h.svc.RecognizeBatch(ctx, req.URLs, req.Options)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) openSession(c *gin.Context) {
	var req models.OpenSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperrors.NewValidationError("invalid request format", err))
			return
		}
	}

	res, err := h.svc.OpenSession(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) addFrame(c *gin.Context) {
	ctx, cancel := h.withTimeout(c)
	defer cancel()

	img, name, err := readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.svc.AddFrame(ctx, c.Param("id"), img, name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) counters(c *gin.Context) {
	res, err := h.svc.Counters(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) sessionReadings(c *gin.Context) {
	res, err := h.svc.SessionReadings(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "readings": res})
}

func (h *Handler) closeSession(c *gin.Context) {
	if err := h.svc.CloseSession(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) findReadings(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, apperrors.NewValidationError("limit must be a positive integer", err))
			return
		}
		limit = n
	}

	res, err := h.svc.FindReadings(c.Request.Context(), c.Query("plate"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plate": c.Query("plate"), "readings": res})
}

func (h *Handler) metricsSnapshot(c *gin.Context) {
	if h.metrics == nil {
		respondError(c, apperrors.NewNotFoundError("metrics are disabled", nil))
		return
	}
	body := gin.H{"recognition": h.metrics.GetMetrics()}
	if h.hub != nil {
		body["websocket_clients"] = h.hub.Clients()
	}
	c.JSON(http.StatusOK, body)
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// readImage decodes the multipart "image" field with EXIF orientation applied.
func readImage(c *gin.Context) (image.Image, string, error) {
	header, err := c.FormFile("image")
	if err != nil {
		return nil, "", apperrors.NewValidationError("multipart field \"image\" is required", err)
	}
	f, err := header.Open()
	if err != nil {
		return nil, "", apperrors.NewInternalError("failed to open upload", err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", apperrors.NewValidationError("failed to decode image", err)
	}
	return img, header.Filename, nil
}

// optionsField parses the optional "options" form field as JSON.
func optionsField(c *gin.Context) (*models.OptionsRequest, error) {
	raw := c.PostForm("options")
	if raw == "" {
		return nil, nil
	}
	var opts models.OptionsRequest
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, apperrors.NewValidationError("invalid options field", err)
	}
	return &opts, nil
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Debug("Request handled")
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)
	message := "request processing failed"
	kind := ""
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
		kind = appErr.Details
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	resp := models.ErrorResponse{
		Error: http.StatusText(code),
		Kind:  kind,
	}
	if appErr != nil && appErr.Cause != nil {
		resp.Message = fmt.Sprintf("%s: %v", message, appErr.Cause)
	} else {
		resp.Message = message
	}
	c.AbortWithStatusJSON(code, resp)
}
