package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vrash12/marcy/internal/config"
	"github.com/vrash12/marcy/internal/models"
)

func newTestRepo(t *testing.T) (QuestionnaireRepository, *sqlx.DB) {
	t.Helper()

	cfg := config.Default().Database
	cfg.Driver = DriverSQLite
	cfg.Path = filepath.Join(t.TempDir(), "questionnaire.db")

	db, err := NewDB(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, MigrateDB(db, zap.NewNop()))

	repo, err := NewQuestionnaireRepository(db, cfg, zap.NewNop())
	require.NoError(t, err)
	return repo, db
}

func TestDSN(t *testing.T) {
	cfg := config.Default().Database

	dsn, err := DSN(cfg)
	require.NoError(t, err)
	assert.Contains(t, dsn, "ccsuggest@tcp(127.0.0.1:3306)/ccsuggest")
	assert.Contains(t, dsn, "parseTime=true")

	cfg.Driver = DriverPostgres
	cfg.Port = 5432
	dsn, err = DSN(cfg)
	require.NoError(t, err)
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "sslmode=disable")

	cfg.Driver = DriverSQLite
	dsn, err = DSN(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Path, dsn)

	cfg.Driver = "oracle"
	_, err = DSN(cfg)
	assert.Error(t, err)
}

func TestNewQuestionnaireRepositoryRejectsBadIdentifiers(t *testing.T) {
	cfg := config.Default().Database
	cfg.ResponsesTable = "responses; DROP TABLE x"
	_, err := NewQuestionnaireRepository(nil, cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestResponseColumns(t *testing.T) {
	repo, _ := newTestRepo(t)

	cols, err := repo.ResponseColumns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "user_id", "question_id", "answer"}, cols)
	assert.Equal(t, "responses", repo.ResponseTable())
}

func TestResponsesAndRecommendationsOrdered(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	db.MustExec(`INSERT INTO responses (id, user_id, question_id, answer) VALUES
		(3, 1, 10, 'B'), (1, 1, 10, 'A'), (2, 2, 11, '4'), (4, 2, 12, NULL)`)
	db.MustExec(`INSERT INTO recommendations (id, user_id, tech_field_id) VALUES
		(2, 1, 5), (1, 1, 3), (3, 2, NULL), (4, 2, 7)`)

	resp, err := repo.Responses(ctx, "answer")
	require.NoError(t, err)
	require.Len(t, resp, 4)
	assert.Equal(t, []int64{1, 2, 3, 4}, []int64{resp[0].ID, resp[1].ID, resp[2].ID, resp[3].ID})
	assert.Equal(t, sql.NullString{String: "A", Valid: true}, resp[0].Answer)
	assert.False(t, resp[3].Answer.Valid)

	recs, err := repo.Recommendations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Recommendation{
		{ID: 1, UserID: 1, TechFieldID: 3},
		{ID: 2, UserID: 1, TechFieldID: 5},
		{ID: 4, UserID: 2, TechFieldID: 7},
	}, recs)

	_, err = repo.Responses(ctx, "answer; --")
	assert.Error(t, err)
}

func TestSeedOperations(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	qs := []models.Question{
		{ID: 1, Type: models.QuestionScale, TechFieldID: sql.NullInt64{Int64: 2, Valid: true}},
		{ID: 2, Type: models.QuestionMultiple},
	}
	require.NoError(t, repo.InsertQuestions(ctx, qs))

	got, err := repo.Questions(ctx)
	require.NoError(t, err)
	assert.Equal(t, qs, got)

	next, err := repo.NextUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	require.NoError(t, repo.InsertStudent(ctx, next, map[int64]string{2: "3", 1: "5"}, 2))

	resp, err := repo.Responses(ctx, "answer")
	require.NoError(t, err)
	require.Len(t, resp, 2)
	assert.Equal(t, int64(1), resp[0].QuestionID)
	assert.Equal(t, "5", resp[0].Answer.String)

	next, err = repo.NextUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)

	require.NoError(t, repo.Reset(ctx))
	resp, err = repo.Responses(ctx, "answer")
	require.NoError(t, err)
	assert.Empty(t, resp)

	got, err = repo.Questions(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMigrateDBIsIdempotent(t *testing.T) {
	_, db := newTestRepo(t)
	assert.NoError(t, MigrateDB(db, zap.NewNop()))
}
