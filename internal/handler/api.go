package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vrash12/marcy/internal/dataset"
	"github.com/vrash12/marcy/internal/forest"
	"github.com/vrash12/marcy/internal/models"
	"github.com/vrash12/marcy/internal/service"
)

const retrainSuggestion = "Ensure you have completed questionnaires in the database before retraining"

// Predictor is the model-serving surface used by the handlers.
type Predictor interface {
	Current() *forest.Model
	Predict(ctx context.Context, features []float64, names []string) (map[int]float64, error)
	Retrain(ctx context.Context) (*forest.Model, error)
	FeatureNames() ([]string, string, error)
}

// Handler handles HTTP requests
type Handler struct {
	predictor   Predictor
	redirectURL string
	logger      *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(predictor Predictor, redirectURL string, logger *zap.Logger) *Handler {
	return &Handler{
		predictor:   predictor,
		redirectURL: redirectURL,
		logger:      logger,
	}
}

// RegisterRoutes registers all API routes. retrainGuard, if not nil, runs
// before the retrain handler.
func (h *Handler) RegisterRoutes(r *gin.Engine, retrainGuard gin.HandlerFunc) {
	r.GET("/", h.Index)
	r.GET("/health", h.HealthCheck)
	r.GET("/features", h.Features)
	r.GET("/export_tree", h.ExportTree)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/predict", h.Predict)
	if retrainGuard != nil {
		r.POST("/retrain", retrainGuard, h.Retrain)
	} else {
		r.POST("/retrain", h.Retrain)
	}
}

// Index describes the service and where the web front end lives.
func (h *Handler) Index(c *gin.Context) {
	resp := gin.H{
		"service":      "ccsuggest-recommender",
		"redirect_url": h.redirectURL,
		"endpoints":    []string{"POST /predict", "POST /retrain", "GET /features", "GET /export_tree", "GET /health", "GET /metrics"},
	}
	if m := h.predictor.Current(); m != nil {
		resp["model"] = modelInfo(m)
	}
	c.JSON(http.StatusOK, resp)
}

// HealthCheck is the liveness probe.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Predict returns class probabilities for one feature vector.
func (h *Handler) Predict(c *gin.Context) {
	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Status: "error", Error: err.Error()})
		return
	}

	probs, err := h.predictor.Predict(c.Request.Context(), req.Features, req.FeatureNames)
	if err != nil {
		var mismatch *service.SchemaMismatchError
		switch {
		case errors.As(err, &mismatch):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Status:           "error",
				Error:            mismatch.Error(),
				ExpectedFeatures: mismatch.Expected,
			})
		case errors.Is(err, service.ErrModelUnavailable):
			h.logger.Error("No model available for prediction", zap.Error(err))
			resp := models.ErrorResponse{Status: "error", Error: err.Error()}
			if dataset.IsDataValidation(err) {
				resp.Suggestion = retrainSuggestion
			}
			c.JSON(http.StatusServiceUnavailable, resp)
		default:
			h.logger.Error("Prediction failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Status: "error", Error: "prediction failed"})
		}
		return
	}

	c.JSON(http.StatusOK, probs)
}

// Retrain rebuilds the dataset and swaps in a freshly fitted model.
func (h *Handler) Retrain(c *gin.Context) {
	m, err := h.predictor.Retrain(c.Request.Context())
	if err != nil {
		if dataset.IsDataValidation(err) {
			h.logger.Warn("Retrain rejected", zap.Error(err))
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Status:     "error",
				Error:      err.Error(),
				Suggestion: retrainSuggestion,
			})
			return
		}
		h.logger.Error("Retrain failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status: "error",
			Error:  fmt.Sprintf("Unexpected error during retraining: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, models.RetrainResponse{
		Status:   "retrained",
		Classes:  m.Classes(),
		Message:  "Model retrained successfully",
		ModelID:  m.ID,
		Rows:     m.Rows,
		Features: len(m.FeatureNames),
	})
}

// Features lists the columns a predict request must supply.
func (h *Handler) Features(c *gin.Context) {
	names, source, err := h.predictor.FeatureNames()
	if errors.Is(err, service.ErrNoFeatureSchema) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Status: "error", Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Failed to read feature names", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Status: "error", Error: "failed to read feature names"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"features": names, "count": len(names), "source": source})
}

// ExportTree downloads one tree of the served forest as YAML.
func (h *Handler) ExportTree(c *gin.Context) {
	m := h.predictor.Current()
	if m == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Status: "error", Error: "no model loaded"})
		return
	}

	idx, err := strconv.Atoi(c.DefaultQuery("tree", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Status: "error", Error: "invalid tree index"})
		return
	}

	out, err := m.ExportYAML(idx)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Status: "error", Error: err.Error()})
		return
	}

	filename := fmt.Sprintf("decision_tree_%d.yaml", idx)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/yaml", out)
}

func modelInfo(m *forest.Model) models.ModelInfo {
	return models.ModelInfo{
		ID:           m.ID,
		TrainedAt:    m.TrainedAt.Format(time.RFC3339),
		Rows:         m.Rows,
		Classes:      m.Classes(),
		FeatureNames: m.FeatureNames,
	}
}
