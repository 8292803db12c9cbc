package models

import "database/sql"

// Response is one questionnaire answer as stored in the source database.
// Answer is kept as raw text; numeric columns are scanned into their
// string form.
type Response struct {
	ID         int64          `db:"id"`
	UserID     int64          `db:"user_id"`
	QuestionID int64          `db:"question_id"`
	Answer     sql.NullString `db:"answer"`
}

// Recommendation is the career label assigned to a user.
type Recommendation struct {
	ID          int64 `db:"id"`
	UserID      int64 `db:"user_id"`
	TechFieldID int   `db:"tech_field_id"`
}

// QuestionType is the answer shape of a questionnaire item.
type QuestionType string

const (
	QuestionScale    QuestionType = "scale"
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
)

// Question is questionnaire metadata used by the synthetic seeder.
type Question struct {
	ID          int64         `db:"id"`
	Type        QuestionType  `db:"type"`
	TechFieldID sql.NullInt64 `db:"tech_field_id"`
}
