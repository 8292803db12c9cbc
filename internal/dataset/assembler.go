package dataset

import (
	"context"
	"fmt"

	"github.com/vrash12/marcy/internal/models"

	"go.uber.org/zap"
)

// Source supplies raw questionnaire rows, each slice in a stable order.
type Source interface {
	ResponseTable() string
	ResponseColumns(ctx context.Context) ([]string, error)
	Responses(ctx context.Context, answerColumn string) ([]models.Response, error)
	Recommendations(ctx context.Context) ([]models.Recommendation, error)
}

// AssemblerConfig controls dataset construction.
type AssemblerConfig struct {
	AnswerColumns []string
	LabelColumn   string
	MinRows       int
	OutputPath    string
}

// Assembler builds the training table from the source database.
type Assembler struct {
	source Source
	cfg    AssemblerConfig
	logger *zap.Logger
}

// NewAssembler creates a new dataset assembler.
func NewAssembler(source Source, cfg AssemblerConfig, logger *zap.Logger) *Assembler {
	return &Assembler{
		source: source,
		cfg:    cfg,
		logger: logger,
	}
}

// DetectAnswerColumn returns the first candidate present in columns.
func DetectAnswerColumn(table string, columns, candidates []string) (string, error) {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}
	for _, c := range candidates {
		if _, ok := present[c]; ok {
			return c, nil
		}
	}
	return "", &SchemaError{Table: table, Candidates: candidates, Found: columns}
}

// Assemble runs normalize, pivot and join over already fetched rows.
// Responses of users without a label are dropped before encoding so the
// column set and codes only reflect labelled users.
func Assemble(responses []models.Response, recs []models.Recommendation, labelColumn string) (*Dataset, EncodingTable) {
	labels := FirstLabels(recs)

	labelled := make([]models.Response, 0, len(responses))
	for _, r := range responses {
		if _, ok := labels[r.UserID]; ok {
			labelled = append(labelled, r)
		}
	}

	obs, table := Normalize(labelled)
	return Join(PivotObservations(obs), labels, labelColumn), table
}

// Validate rejects tables that cannot train a classifier.
func (d *Dataset) Validate(minRows int) error {
	if d.Len() == 0 {
		return ErrEmptyDataset
	}
	if d.Len() < minRows {
		return fmt.Errorf("%w: only %d records found, need at least %d records", ErrInsufficientData, d.Len(), minRows)
	}
	if d.LabelColumn == "" || len(d.Labels) != d.Len() {
		return ErrMissingLabel
	}
	if len(d.FeatureNames) == 0 {
		return ErrNoFeatures
	}
	return nil
}

// Build queries the source, assembles and validates the table, and writes
// it to the configured CSV path, replacing any previous file.
func (a *Assembler) Build(ctx context.Context) (*Dataset, error) {
	columns, err := a.source.ResponseColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect response columns: %w", err)
	}
	answerCol, err := DetectAnswerColumn(a.source.ResponseTable(), columns, a.cfg.AnswerColumns)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Detected answer column", zap.String("column", answerCol))

	recs, err := a.source.Recommendations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recommendations: %w", err)
	}
	responses, err := a.source.Responses(ctx, answerCol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch responses: %w", err)
	}

	ds, table := Assemble(responses, recs, a.cfg.LabelColumn)
	if n := sentinelCollisions(ds); n > 0 {
		a.logger.Warn("Numeric answers equal to the missing sentinel",
			zap.Int("cells", n), zap.Float64("sentinel", MissingValue))
	}

	if err := ds.Validate(a.cfg.MinRows); err != nil {
		return nil, err
	}

	if err := WriteCSV(a.cfg.OutputPath, ds); err != nil {
		return nil, fmt.Errorf("failed to write training data: %w", err)
	}

	a.logger.Info("Training dataset built",
		zap.String("path", a.cfg.OutputPath),
		zap.Int("rows", ds.Len()),
		zap.Int("features", len(ds.FeatureNames)),
		zap.Int("encoded_questions", len(table)),
		zap.Int("missing_cells", ds.MissingCells()))
	return ds, nil
}

// sentinelCollisions counts answered cells whose value equals MissingValue.
func sentinelCollisions(d *Dataset) int {
	n := 0
	for i, row := range d.Rows {
		for j, v := range row {
			if v == MissingValue && !d.Missing[i][j] {
				n++
			}
		}
	}
	return n
}
