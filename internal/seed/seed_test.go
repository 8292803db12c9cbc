package seed

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vrash12/marcy/internal/config"
	"github.com/vrash12/marcy/internal/dataset"
	"github.com/vrash12/marcy/internal/models"
	"github.com/vrash12/marcy/internal/repository"
)

func testConfig(students int) Config {
	return Config{
		Students:    students,
		NumOptions:  4,
		TechFields:  3,
		RandomState: 7,
		LabelColumn: "tech_field_id",
	}
}

func TestDefaultQuestions(t *testing.T) {
	qs := DefaultQuestions(2)
	require.Len(t, qs, 6)
	assert.Equal(t, int64(1), qs[0].ID)
	assert.Equal(t, models.QuestionScale, qs[0].Type)
	assert.Equal(t, models.QuestionMultiple, qs[5].Type)
	assert.Equal(t, int64(2), qs[5].TechFieldID.Int64)
}

func TestStudentAnswersRespectTypes(t *testing.T) {
	qs := []models.Question{
		{ID: 1, Type: models.QuestionScale, TechFieldID: sql.NullInt64{Int64: 1, Valid: true}},
		{ID: 2, Type: models.QuestionSingle, TechFieldID: sql.NullInt64{Int64: 1, Valid: true}},
		{ID: 3, Type: models.QuestionMultiple, TechFieldID: sql.NullInt64{Int64: 1, Valid: true}},
		{ID: 4, Type: models.QuestionScale},
	}
	g := NewGenerator(testConfig(0))

	for i := 0; i < 200; i++ {
		s := g.Student(qs)
		require.GreaterOrEqual(t, s.TechFieldID, 1)
		require.LessOrEqual(t, s.TechFieldID, 3)
		assert.True(t, s.Answers[1] >= 1 && s.Answers[1] <= 5)
		assert.True(t, s.Answers[2] >= 0 && s.Answers[2] < 4)
		assert.True(t, s.Answers[3] >= 0 && s.Answers[3] < 16)

		if s.TechFieldID == 1 {
			assert.GreaterOrEqual(t, s.Answers[1], 4)
			assert.Equal(t, 0, s.Answers[2])
			assert.Equal(t, 1, s.Answers[3]&1)
		} else {
			assert.Equal(t, 0, s.Answers[3]&1)
		}
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	qs := DefaultQuestions(3)
	a := NewGenerator(testConfig(20)).Dataset(qs)
	b := NewGenerator(testConfig(20)).Dataset(qs)
	assert.Equal(t, a.Rows, b.Rows)
	assert.Equal(t, a.Labels, b.Labels)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_data.csv")
	s := NewSeeder(nil, testConfig(25), zap.NewNop())

	d, err := s.WriteCSV(path, DefaultQuestions(3))
	require.NoError(t, err)
	assert.Equal(t, 25, d.Len())

	loaded, err := dataset.ReadCSV(path, "tech_field_id")
	require.NoError(t, err)
	assert.Equal(t, d.Rows, loaded.Rows)
	assert.Equal(t, d.Labels, loaded.Labels)
	assert.Equal(t, 0, loaded.MissingCells())
}

func TestSeedDatabaseFeedsAssembler(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default().Database
	cfg.Driver = repository.DriverSQLite
	cfg.Path = filepath.Join(t.TempDir(), "seed.db")

	db, err := repository.NewDB(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, repository.MigrateDB(db, zap.NewNop()))
	repo, err := repository.NewQuestionnaireRepository(db, cfg, zap.NewNop())
	require.NoError(t, err)

	s := NewSeeder(repo, testConfig(30), zap.NewNop())
	n, err := s.SeedDatabase(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	n, err = s.SeedDatabase(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	out := filepath.Join(t.TempDir(), "training_data.csv")
	d, err := dataset.NewAssembler(repo, dataset.AssemblerConfig{
		AnswerColumns: []string{"answer"},
		LabelColumn:   "tech_field_id",
		MinRows:       10,
		OutputPath:    out,
	}, zap.NewNop()).Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, d.Len())
	assert.Len(t, d.FeatureNames, 9)
	assert.Equal(t, 0, d.MissingCells())

	_, err = s.SeedDatabase(ctx, true)
	require.NoError(t, err)
	recs, err := repo.Recommendations(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 30)
}
