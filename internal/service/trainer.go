package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vrash12/marcy/internal/dataset"
	"github.com/vrash12/marcy/internal/forest"
)

// DatasetBuilder produces a validated training table.
type DatasetBuilder interface {
	Build(ctx context.Context) (*dataset.Dataset, error)
}

// TrainerConfig holds forest hyperparameters and the model slot.
type TrainerConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures <= 0 picks sqrt(p) features per split.
	MaxFeatures         int
	Bootstrap           bool
	Criterion           string
	MinImpurityDecrease float64
	RandomState         int64
	Workers             int
	ModelPath           string
}

// Trainer rebuilds the dataset and fits a new model. It never touches the
// served model.
type Trainer struct {
	builder DatasetBuilder
	cfg     TrainerConfig
	logger  *zap.Logger
}

// NewTrainer creates a new trainer.
func NewTrainer(builder DatasetBuilder, cfg TrainerConfig, logger *zap.Logger) *Trainer {
	return &Trainer{
		builder: builder,
		cfg:     cfg,
		logger:  logger,
	}
}

// Train builds the dataset from the source and fits on it.
func (t *Trainer) Train(ctx context.Context) (*forest.Model, error) {
	ds, err := t.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	return t.Fit(ctx, ds)
}

// Fit trains a forest on ds and persists it to the model slot.
func (t *Trainer) Fit(ctx context.Context, ds *dataset.Dataset) (*forest.Model, error) {
	start := time.Now()

	f := forest.New(
		forest.WithNEstimators(t.cfg.Trees),
		forest.WithMaxDepth(t.cfg.MaxDepth),
		forest.WithMinSamplesSplit(t.cfg.MinSamplesSplit),
		forest.WithMinSamplesLeaf(t.cfg.MinSamplesLeaf),
		forest.WithMaxFeatures(t.cfg.MaxFeatures),
		forest.WithBootstrap(t.cfg.Bootstrap),
		forest.WithCriterion(t.cfg.Criterion),
		forest.WithMinImpurityDecrease(t.cfg.MinImpurityDecrease),
		forest.WithRandomState(t.cfg.RandomState),
		forest.WithWorkers(t.cfg.Workers),
	)
	if err := f.Fit(ctx, ds.Rows, ds.Labels); err != nil {
		return nil, fmt.Errorf("failed to fit model: %w", err)
	}

	m := forest.NewModel(f, ds.FeatureNames, ds.Len())
	if t.cfg.ModelPath != "" {
		if err := forest.Save(t.cfg.ModelPath, m); err != nil {
			return nil, fmt.Errorf("failed to save model: %w", err)
		}
	}

	t.logger.Info("Model trained",
		zap.String("model_id", m.ID),
		zap.Int("rows", m.Rows),
		zap.Int("features", len(m.FeatureNames)),
		zap.Ints("classes", m.Classes()),
		zap.Float64("train_accuracy", f.Accuracy(ds.Rows, ds.Labels)),
		zap.Duration("duration", time.Since(start)))
	return m, nil
}
