package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vrash12/marcy/internal/dataset"
	"github.com/vrash12/marcy/internal/forest"
	"github.com/vrash12/marcy/internal/metrics"
)

// ErrModelUnavailable means no model is served and none could be loaded
// or trained.
var ErrModelUnavailable = errors.New("no model available")

// ErrNoFeatureSchema means neither a model nor a training table exists.
var ErrNoFeatureSchema = errors.New("no model or training data found")

// SchemaMismatchError rejects a feature vector that does not match the
// served model's columns.
type SchemaMismatchError struct {
	Expected []string
	Got      int
	Names    []string
}

func (e *SchemaMismatchError) Error() string {
	if e.Names != nil && len(e.Names) == len(e.Expected) {
		return fmt.Sprintf("feature names do not match the model schema; expected %v", e.Expected)
	}
	return fmt.Sprintf("expected %d features, got %d", len(e.Expected), e.Got)
}

// PredictorConfig locates persisted artifacts.
type PredictorConfig struct {
	ModelPath   string
	DataPath    string
	LabelColumn string
}

// Predictor serves predictions and swaps in retrained models.
type Predictor struct {
	handle  ModelHandle
	trainer *Trainer
	cfg     PredictorConfig
	group   singleflight.Group
	logger  *zap.Logger
}

// NewPredictor creates a predictor with no model loaded.
func NewPredictor(trainer *Trainer, cfg PredictorConfig, logger *zap.Logger) *Predictor {
	return &Predictor{
		trainer: trainer,
		cfg:     cfg,
		logger:  logger,
	}
}

// Current returns the served model, or nil.
func (p *Predictor) Current() *forest.Model {
	return p.handle.Current()
}

// Ensure returns the served model, loading it from the model slot or
// training one if nothing is served yet. Concurrent callers share a single
// bootstrap, which runs detached from any one caller: a caller that gives up
// returns its own context error and the others keep waiting.
func (p *Predictor) Ensure(ctx context.Context) (*forest.Model, error) {
	if m := p.handle.Current(); m != nil {
		return m, nil
	}

	ch := p.group.DoChan("bootstrap", func() (interface{}, error) {
		return p.bootstrap(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, res.Err)
		}
		return res.Val.(*forest.Model), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, ctx.Err())
	}
}

func (p *Predictor) bootstrap(ctx context.Context) (*forest.Model, error) {
	if m := p.handle.Current(); m != nil {
		return m, nil
	}

	m, err := forest.Load(p.cfg.ModelPath)
	switch {
	case err == nil:
		p.logger.Info("Loaded model from disk",
			zap.String("path", p.cfg.ModelPath),
			zap.String("model_id", m.ID))
	case errors.Is(err, forest.ErrNoModel):
		p.logger.Info("No model on disk, training a new one", zap.String("path", p.cfg.ModelPath))
		m, err = p.train(ctx, "bootstrap")
	default:
		p.logger.Warn("Failed to load model, training a new one", zap.Error(err))
		m, err = p.train(ctx, "bootstrap")
	}
	if err != nil {
		return nil, err
	}

	p.install(m)
	return m, nil
}

// Predict returns the probability of every class for one feature vector.
// names is optional; when given it must equal the model's feature names.
func (p *Predictor) Predict(ctx context.Context, features []float64, names []string) (map[int]float64, error) {
	m, err := p.Ensure(ctx)
	if err != nil {
		metrics.RecordPrediction("no_model")
		return nil, err
	}

	if len(features) != len(m.FeatureNames) || (names != nil && !slices.Equal(names, m.FeatureNames)) {
		metrics.RecordPrediction("schema_mismatch")
		return nil, &SchemaMismatchError{Expected: m.FeatureNames, Got: len(features), Names: names}
	}

	probs, err := m.PredictProba(features)
	if err != nil {
		return nil, err
	}
	metrics.RecordPrediction("ok")
	return probs, nil
}

// Retrain rebuilds the dataset and fits a new model. The served model is
// replaced only when training succeeds.
func (p *Predictor) Retrain(ctx context.Context) (*forest.Model, error) {
	m, err := p.train(ctx, "retrain")
	if err != nil {
		return nil, err
	}
	p.install(m)
	return m, nil
}

// FeatureNames returns the served model's schema, falling back to the
// training table header when no model is loaded.
func (p *Predictor) FeatureNames() ([]string, string, error) {
	if m := p.handle.Current(); m != nil {
		return m.FeatureNames, "model", nil
	}

	header, err := dataset.ReadHeader(p.cfg.DataPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNoFeatureSchema
	}
	if err != nil {
		return nil, "", err
	}

	names := make([]string, 0, len(header))
	for _, h := range header {
		if h != p.cfg.LabelColumn {
			names = append(names, h)
		}
	}
	return names, "training_data", nil
}

func (p *Predictor) train(ctx context.Context, trigger string) (*forest.Model, error) {
	start := time.Now()
	m, err := p.trainer.Train(ctx)

	result := metrics.ResultSuccess
	switch {
	case err == nil:
	case dataset.IsDataValidation(err):
		result = metrics.ResultValidation
	default:
		result = metrics.ResultError
	}
	metrics.RecordTraining(trigger, result, time.Since(start))
	return m, err
}

func (p *Predictor) install(m *forest.Model) {
	old := p.handle.Swap(m)
	metrics.SetServedModel(m.Rows, len(m.FeatureNames), time.Now())

	fields := []zap.Field{zap.String("model_id", m.ID), zap.Ints("classes", m.Classes())}
	if old != nil {
		fields = append(fields, zap.String("previous_model_id", old.ID))
	}
	p.logger.Info("Model swapped in", fields...)
}
