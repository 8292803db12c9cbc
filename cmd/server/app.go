package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vrash12/marcy/internal/config"
	"github.com/vrash12/marcy/internal/dataset"
	"github.com/vrash12/marcy/internal/repository"
	"github.com/vrash12/marcy/internal/service"
)

// app wires the components shared by the commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db        *sqlx.DB
	repo      repository.QuestionnaireRepository
	assembler *dataset.Assembler
	trainer   *service.Trainer
	predictor *service.Predictor
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadConfig(path)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// newOfflineApp loads config and logger only.
func newOfflineApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	a.trainer = service.NewTrainer(nil, trainerConfig(cfg), logger)
	return a, nil
}

// newApp connects to the questionnaire database and builds the serving
// pipeline on top of it. With requireDB unset an unreachable database is
// only a warning: the saved model can still be served and retraining fails
// until the database comes back.
func newApp(cmd *cobra.Command, requireDB bool) (*app, error) {
	a, err := newOfflineApp(cmd)
	if err != nil {
		return nil, err
	}
	cfg := a.cfg

	if requireDB {
		a.db, err = repository.NewDB(cmd.Context(), cfg.Database, a.logger)
	} else {
		a.db, err = repository.OpenDB(cfg.Database)
		if err == nil {
			if perr := repository.Ping(cmd.Context(), a.db, cfg.Database); perr != nil {
				a.logger.Warn("Questionnaire database unreachable, continuing without it", zap.Error(perr))
			}
		}
	}
	if err != nil {
		a.Close()
		return nil, err
	}

	a.repo, err = repository.NewQuestionnaireRepository(a.db, cfg.Database, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.assembler = dataset.NewAssembler(a.repo, dataset.AssemblerConfig{
		AnswerColumns: cfg.Training.AnswerColumns,
		LabelColumn:   cfg.Training.LabelColumn,
		MinRows:       cfg.Training.MinRows,
		OutputPath:    cfg.Storage.DataPath,
	}, a.logger)
	a.trainer = service.NewTrainer(a.assembler, trainerConfig(cfg), a.logger)
	a.predictor = service.NewPredictor(a.trainer, service.PredictorConfig{
		ModelPath:   cfg.Storage.ModelPath,
		DataPath:    cfg.Storage.DataPath,
		LabelColumn: cfg.Training.LabelColumn,
	}, a.logger)
	return a, nil
}

func trainerConfig(cfg *config.Config) service.TrainerConfig {
	return service.TrainerConfig{
		Trees:               cfg.Training.Trees,
		MaxDepth:            cfg.Training.MaxDepth,
		MinSamplesSplit:     cfg.Training.MinSamplesSplit,
		MinSamplesLeaf:      cfg.Training.MinSamplesLeaf,
		MaxFeatures:         cfg.Training.MaxFeatures,
		Bootstrap:           cfg.Training.Bootstrap,
		Criterion:           cfg.Training.Criterion,
		MinImpurityDecrease: cfg.Training.MinImpurityDecrease,
		RandomState:         cfg.Training.RandomState,
		Workers:             cfg.Training.Workers,
		ModelPath:           cfg.Storage.ModelPath,
	}
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Sync()
}
