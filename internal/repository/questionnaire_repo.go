package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/vrash12/marcy/internal/config"
	"github.com/vrash12/marcy/internal/models"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuestionnaireRepository reads questionnaire answers and labels and, for
// development databases, writes synthetic ones.
type QuestionnaireRepository interface {
	ResponseTable() string
	ResponseColumns(ctx context.Context) ([]string, error)
	Responses(ctx context.Context, answerColumn string) ([]models.Response, error)
	Recommendations(ctx context.Context) ([]models.Recommendation, error)

	Questions(ctx context.Context) ([]models.Question, error)
	InsertQuestions(ctx context.Context, qs []models.Question) error
	InsertStudent(ctx context.Context, userID int64, answers map[int64]string, techFieldID int) error
	NextUserID(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
}

type questionnaireRepository struct {
	db     *sqlx.DB
	logger *zap.Logger

	responses       string
	recommendations string
	questions       string
	orderBy         string
}

// NewQuestionnaireRepository validates the configured table and column
// names, since they are interpolated into queries.
func NewQuestionnaireRepository(db *sqlx.DB, cfg config.DatabaseConfig, logger *zap.Logger) (QuestionnaireRepository, error) {
	for _, name := range []string{cfg.ResponsesTable, cfg.RecommendationsTable, cfg.QuestionsTable, cfg.OrderColumn} {
		if !identRe.MatchString(name) {
			return nil, fmt.Errorf("invalid identifier %q", name)
		}
	}
	return &questionnaireRepository{
		db:              db,
		logger:          logger,
		responses:       cfg.ResponsesTable,
		recommendations: cfg.RecommendationsTable,
		questions:       cfg.QuestionsTable,
		orderBy:         cfg.OrderColumn,
	}, nil
}

func (r *questionnaireRepository) quote(ident string) string {
	if r.db.DriverName() == DriverMySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

// order is the ORDER BY clause that fixes which row counts as "first".
func (r *questionnaireRepository) order() string {
	if r.orderBy == "id" {
		return r.quote("id")
	}
	return r.quote(r.orderBy) + ", " + r.quote("id")
}

func (r *questionnaireRepository) ResponseTable() string {
	return r.responses
}

// ResponseColumns lists the columns of the responses table in table order.
func (r *questionnaireRepository) ResponseColumns(ctx context.Context) ([]string, error) {
	var (
		query string
		cols  []string
	)
	switch r.db.DriverName() {
	case DriverSQLite:
		query = `SELECT name FROM pragma_table_info(?) ORDER BY cid`
	case DriverPostgres:
		query = `SELECT column_name FROM information_schema.columns
		         WHERE table_schema = current_schema() AND table_name = ?
		         ORDER BY ordinal_position`
	default:
		query = `SELECT COLUMN_NAME FROM information_schema.columns
		         WHERE table_schema = DATABASE() AND table_name = ?
		         ORDER BY ORDINAL_POSITION`
	}
	if err := r.db.SelectContext(ctx, &cols, r.db.Rebind(query), r.responses); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q not found or has no columns", r.responses)
	}
	return cols, nil
}

// Responses returns every answer with answerColumn aliased to answer,
// ordered so that the first row per (user, question) is stable.
func (r *questionnaireRepository) Responses(ctx context.Context, answerColumn string) ([]models.Response, error) {
	if !identRe.MatchString(answerColumn) {
		return nil, fmt.Errorf("invalid answer column %q", answerColumn)
	}
	query := fmt.Sprintf(`SELECT id, user_id, question_id, %s AS answer FROM %s ORDER BY %s`,
		r.quote(answerColumn), r.quote(r.responses), r.order())

	var out []models.Response
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

// Recommendations returns labelled rows, first label per user first.
func (r *questionnaireRepository) Recommendations(ctx context.Context) ([]models.Recommendation, error) {
	query := fmt.Sprintf(`SELECT id, user_id, tech_field_id FROM %s WHERE tech_field_id IS NOT NULL ORDER BY %s`,
		r.quote(r.recommendations), r.order())

	var out []models.Recommendation
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionnaireRepository) Questions(ctx context.Context) ([]models.Question, error) {
	query := fmt.Sprintf(`SELECT id, type, tech_field_id FROM %s ORDER BY id`, r.quote(r.questions))

	var out []models.Question
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionnaireRepository) InsertQuestions(ctx context.Context, qs []models.Question) error {
	query := r.db.Rebind(fmt.Sprintf(`INSERT INTO %s (id, type, tech_field_id) VALUES (?, ?, ?)`, r.quote(r.questions)))
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, q := range qs {
			if _, err := tx.ExecContext(ctx, query, q.ID, string(q.Type), q.TechFieldID); err != nil {
				return fmt.Errorf("insert question %d: %w", q.ID, err)
			}
		}
		return nil
	})
}

// InsertStudent writes one user's answers and label in a single transaction.
func (r *questionnaireRepository) InsertStudent(ctx context.Context, userID int64, answers map[int64]string, techFieldID int) error {
	respQuery := r.db.Rebind(fmt.Sprintf(`INSERT INTO %s (user_id, question_id, answer) VALUES (?, ?, ?)`, r.quote(r.responses)))
	recQuery := r.db.Rebind(fmt.Sprintf(`INSERT INTO %s (user_id, tech_field_id) VALUES (?, ?)`, r.quote(r.recommendations)))

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, qid := range sortedKeys(answers) {
			if _, err := tx.ExecContext(ctx, respQuery, userID, qid, answers[qid]); err != nil {
				return fmt.Errorf("insert response: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, recQuery, userID, techFieldID); err != nil {
			return fmt.Errorf("insert recommendation: %w", err)
		}
		return nil
	})
}

// NextUserID is one past the highest user id seen in responses or
// recommendations.
func (r *questionnaireRepository) NextUserID(ctx context.Context) (int64, error) {
	var maxID int64
	for _, table := range []string{r.responses, r.recommendations} {
		var id sql.NullInt64
		query := fmt.Sprintf(`SELECT MAX(user_id) FROM %s`, r.quote(table))
		if err := r.db.GetContext(ctx, &id, query); err != nil {
			return 0, err
		}
		if id.Valid && id.Int64 > maxID {
			maxID = id.Int64
		}
	}
	return maxID + 1, nil
}

// Reset deletes all responses and recommendations. Questions are kept.
func (r *questionnaireRepository) Reset(ctx context.Context) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{r.responses, r.recommendations} {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, r.quote(table))); err != nil {
				return err
			}
		}
		r.logger.Info("Cleared questionnaire answers", zap.String("responses", r.responses), zap.String("recommendations", r.recommendations))
		return nil
	})
}

func (r *questionnaireRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit()
}

func sortedKeys(m map[int64]string) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
