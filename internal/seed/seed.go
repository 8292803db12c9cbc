// Package seed generates synthetic questionnaire answers whose values lean
// towards each student's assigned tech field.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strconv"

	"go.uber.org/zap"

	"github.com/vrash12/marcy/internal/dataset"
	"github.com/vrash12/marcy/internal/models"
)

// Config controls the generator.
type Config struct {
	Students    int
	NumOptions  int
	TechFields  int
	RandomState int64
	LabelColumn string
}

// Student is one synthetic respondent.
type Student struct {
	Answers     map[int64]int
	TechFieldID int
}

// Store is the subset of the questionnaire repository the seeder writes to.
type Store interface {
	Questions(ctx context.Context) ([]models.Question, error)
	InsertQuestions(ctx context.Context, qs []models.Question) error
	InsertStudent(ctx context.Context, userID int64, answers map[int64]string, techFieldID int) error
	NextUserID(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
}

// Generator produces students for a fixed question set.
type Generator struct {
	cfg Config
	rnd *rand.Rand
}

// NewGenerator creates a generator seeded with cfg.RandomState.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg, rnd: rand.New(rand.NewSource(cfg.RandomState))}
}

// DefaultQuestions lays out one scale, single and multiple choice question
// per tech field.
func DefaultQuestions(techFields int) []models.Question {
	types := []models.QuestionType{models.QuestionScale, models.QuestionSingle, models.QuestionMultiple}
	qs := make([]models.Question, 0, techFields*len(types))
	id := int64(1)
	for field := 1; field <= techFields; field++ {
		for _, typ := range types {
			qs = append(qs, models.Question{
				ID:          id,
				Type:        typ,
				TechFieldID: sql.NullInt64{Int64: int64(field), Valid: true},
			})
			id++
		}
	}
	return qs
}

// Student draws a tech field and answers every question, biased when the
// question belongs to that field.
func (g *Generator) Student(questions []models.Question) Student {
	field := g.rnd.Intn(g.cfg.TechFields) + 1
	s := Student{Answers: make(map[int64]int, len(questions)), TechFieldID: field}
	for _, q := range questions {
		correlated := q.TechFieldID.Valid && q.TechFieldID.Int64 == int64(field)
		switch q.Type {
		case models.QuestionScale:
			s.Answers[q.ID] = g.scale(correlated)
		case models.QuestionSingle:
			s.Answers[q.ID] = g.single(correlated)
		default:
			s.Answers[q.ID] = g.multiple(correlated)
		}
	}
	return s
}

// scale is a 1-5 Likert answer, 4-5 when correlated.
func (g *Generator) scale(correlated bool) int {
	if correlated {
		return 4 + g.rnd.Intn(2)
	}
	return 1 + g.rnd.Intn(5)
}

// single picks option 0 when correlated.
func (g *Generator) single(correlated bool) int {
	if correlated {
		return 0
	}
	return g.rnd.Intn(g.cfg.NumOptions)
}

// multiple is a bit mask over the options; bit 0 is set when correlated and
// every other bit with probability 1/4.
func (g *Generator) multiple(correlated bool) int {
	mask := 0
	if correlated {
		mask = 1
	}
	for i := 1; i < g.cfg.NumOptions; i++ {
		if g.rnd.Float64() < 0.25 {
			mask |= 1 << i
		}
	}
	return mask
}

// Dataset generates cfg.Students students as a training table.
func (g *Generator) Dataset(questions []models.Question) *dataset.Dataset {
	d := &dataset.Dataset{LabelColumn: g.cfg.LabelColumn}
	for _, q := range questions {
		d.QuestionIDs = append(d.QuestionIDs, q.ID)
		d.FeatureNames = append(d.FeatureNames, dataset.ColumnName(q.ID))
	}

	for i := 0; i < g.cfg.Students; i++ {
		s := g.Student(questions)
		row := make([]float64, len(questions))
		for j, q := range questions {
			row[j] = float64(s.Answers[q.ID])
		}
		d.UserIDs = append(d.UserIDs, int64(i+1))
		d.Rows = append(d.Rows, row)
		d.Missing = append(d.Missing, make([]bool, len(questions)))
		d.Labels = append(d.Labels, s.TechFieldID)
	}
	return d
}

// Seeder writes synthetic students to a store or a CSV table.
type Seeder struct {
	store  Store
	cfg    Config
	logger *zap.Logger
}

// NewSeeder creates a seeder. store may be nil for CSV-only use.
func NewSeeder(store Store, cfg Config, logger *zap.Logger) *Seeder {
	return &Seeder{store: store, cfg: cfg, logger: logger}
}

// Questions returns the stored questions, creating the default set when the
// table is empty.
func (s *Seeder) Questions(ctx context.Context) ([]models.Question, error) {
	qs, err := s.store.Questions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch questions: %w", err)
	}
	if len(qs) > 0 {
		return qs, nil
	}

	qs = DefaultQuestions(s.cfg.TechFields)
	if err := s.store.InsertQuestions(ctx, qs); err != nil {
		return nil, fmt.Errorf("failed to create questions: %w", err)
	}
	s.logger.Info("Created default questions", zap.Int("count", len(qs)))
	return qs, nil
}

// SeedDatabase appends cfg.Students students to the store. With reset the
// existing answers and labels are removed first.
func (s *Seeder) SeedDatabase(ctx context.Context, reset bool) (int, error) {
	if reset {
		if err := s.store.Reset(ctx); err != nil {
			return 0, fmt.Errorf("failed to reset answers: %w", err)
		}
	}

	qs, err := s.Questions(ctx)
	if err != nil {
		return 0, err
	}
	next, err := s.store.NextUserID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to find next user id: %w", err)
	}

	g := NewGenerator(s.cfg)
	for i := 0; i < s.cfg.Students; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		st := g.Student(qs)
		answers := make(map[int64]string, len(st.Answers))
		for qid, v := range st.Answers {
			answers[qid] = strconv.Itoa(v)
		}
		if err := s.store.InsertStudent(ctx, next+int64(i), answers, st.TechFieldID); err != nil {
			return i, fmt.Errorf("failed to insert student %d: %w", next+int64(i), err)
		}
	}

	s.logger.Info("Seeded synthetic students",
		zap.Int("students", s.cfg.Students),
		zap.Int("questions", len(qs)),
		zap.Int64("first_user_id", next))
	return s.cfg.Students, nil
}

// WriteCSV generates a training table directly, bypassing the database.
func (s *Seeder) WriteCSV(path string, questions []models.Question) (*dataset.Dataset, error) {
	d := NewGenerator(s.cfg).Dataset(questions)
	if err := dataset.WriteCSV(path, d); err != nil {
		return nil, err
	}
	s.logger.Info("Generated synthetic training data",
		zap.String("path", path),
		zap.Int("rows", d.Len()),
		zap.Int("features", len(d.FeatureNames)))
	return d, nil
}
