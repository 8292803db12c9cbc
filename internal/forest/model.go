package forest

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrNoModel is returned by Load when no model file exists.
var ErrNoModel = errors.New("model file not found")

// Model is a fitted forest together with the feature schema it expects.
type Model struct {
	ID           string
	TrainedAt    time.Time
	Rows         int
	FeatureNames []string
	Forest       *Forest
}

// NewModel wraps a fitted forest.
func NewModel(f *Forest, featureNames []string, rows int) *Model {
	return &Model{
		ID:           uuid.NewString(),
		TrainedAt:    time.Now().UTC(),
		Rows:         rows,
		FeatureNames: append([]string(nil), featureNames...),
		Forest:       f,
	}
}

// Classes are the labels the forest was fitted on, ascending.
func (m *Model) Classes() []int {
	return append([]int(nil), m.Forest.Classes...)
}

// PredictProba maps every known class to its probability for x.
func (m *Model) PredictProba(x []float64) (map[int]float64, error) {
	if len(x) != len(m.FeatureNames) {
		return nil, fmt.Errorf("expected %d features, got %d", len(m.FeatureNames), len(x))
	}
	probs := m.Forest.predictProbaSingle(x)
	out := make(map[int]float64, len(probs))
	for i, c := range m.Forest.Classes {
		out[c] = probs[i]
	}
	return out, nil
}

// Save writes the model to path, replacing any previous file in one rename.
func Save(path string, m *Model) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(m); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoModel
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m Model
	if err := gob.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	if m.Forest == nil || len(m.Forest.Trees) == 0 {
		return nil, fmt.Errorf("model %s has no trees", path)
	}
	return &m, nil
}
