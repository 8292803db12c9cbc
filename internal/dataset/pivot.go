package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MissingValue fills cells for questions a user did not answer.
const MissingValue = -1.0

// FeatureRow holds one user's answers keyed by question id.
type FeatureRow struct {
	UserID int64
	Values map[int64]float64
}

// Pivot is the wide feature table: one row per user, one column per question.
type Pivot struct {
	QuestionIDs []int64
	Rows        []FeatureRow
}

// ColumnName is the feature name used for a question.
func ColumnName(questionID int64) string {
	return "Q" + strconv.FormatInt(questionID, 10)
}

// ParseColumnName is the inverse of ColumnName.
func ParseColumnName(name string) (int64, error) {
	if !strings.HasPrefix(name, "Q") {
		return 0, fmt.Errorf("feature column %q does not start with Q", name)
	}
	id, err := strconv.ParseInt(name[1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("feature column %q: %w", name, err)
	}
	return id, nil
}

// PivotObservations groups observations by user. The first observation of
// a (user, question) pair wins; later duplicates are ignored. Rows are
// ordered by user id, columns by question id.
func PivotObservations(obs []Observation) *Pivot {
	byUser := make(map[int64]*FeatureRow)
	questions := make(map[int64]struct{})

	for _, o := range obs {
		row, ok := byUser[o.UserID]
		if !ok {
			row = &FeatureRow{UserID: o.UserID, Values: make(map[int64]float64)}
			byUser[o.UserID] = row
		}
		if _, seen := row.Values[o.QuestionID]; seen {
			continue
		}
		row.Values[o.QuestionID] = o.Value
		questions[o.QuestionID] = struct{}{}
	}

	p := &Pivot{
		QuestionIDs: make([]int64, 0, len(questions)),
		Rows:        make([]FeatureRow, 0, len(byUser)),
	}
	for qid := range questions {
		p.QuestionIDs = append(p.QuestionIDs, qid)
	}
	sort.Slice(p.QuestionIDs, func(i, j int) bool { return p.QuestionIDs[i] < p.QuestionIDs[j] })

	for _, row := range byUser {
		p.Rows = append(p.Rows, *row)
	}
	sort.Slice(p.Rows, func(i, j int) bool { return p.Rows[i].UserID < p.Rows[j].UserID })
	return p
}

// FeatureNames returns the column names in column order.
func (p *Pivot) FeatureNames() []string {
	names := make([]string, len(p.QuestionIDs))
	for i, qid := range p.QuestionIDs {
		names[i] = ColumnName(qid)
	}
	return names
}

// Vector lays the row out over columns, filling gaps with MissingValue.
func (r FeatureRow) Vector(questionIDs []int64) ([]float64, []bool) {
	values := make([]float64, len(questionIDs))
	missing := make([]bool, len(questionIDs))
	for i, qid := range questionIDs {
		v, ok := r.Values[qid]
		if !ok {
			values[i] = MissingValue
			missing[i] = true
			continue
		}
		values[i] = v
	}
	return values, missing
}
