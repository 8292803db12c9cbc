package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrash12/marcy/internal/models"
)

func TestColumnNames(t *testing.T) {
	assert.Equal(t, "Q12", ColumnName(12))

	id, err := ParseColumnName("Q12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	_, err = ParseColumnName("X1")
	assert.Error(t, err)
	_, err = ParseColumnName("Qx")
	assert.Error(t, err)
}

func TestPivotSortsColumnsNumerically(t *testing.T) {
	obs := []Observation{
		{UserID: 2, QuestionID: 10, Value: 1},
		{UserID: 1, QuestionID: 9, Value: 2},
		{UserID: 1, QuestionID: 100, Value: 3},
	}

	p := PivotObservations(obs)

	assert.Equal(t, []int64{9, 10, 100}, p.QuestionIDs)
	assert.Equal(t, []string{"Q9", "Q10", "Q100"}, p.FeatureNames())
	require.Len(t, p.Rows, 2)
	assert.Equal(t, int64(1), p.Rows[0].UserID)

	values, missing := p.Rows[0].Vector(p.QuestionIDs)
	assert.Equal(t, []float64{2, MissingValue, 3}, values)
	assert.Equal(t, []bool{false, true, false}, missing)
}

func TestPivotFirstValueWins(t *testing.T) {
	obs, _ := Normalize([]models.Response{
		resp(1, 5, "A"),
		resp(1, 5, "B"),
	})

	p := PivotObservations(obs)

	require.Len(t, p.Rows, 1)
	assert.Equal(t, 0.0, p.Rows[0].Values[5])
}

func TestFirstLabels(t *testing.T) {
	labels := FirstLabels([]models.Recommendation{
		{UserID: 1, TechFieldID: 4},
		{UserID: 2, TechFieldID: 6},
		{UserID: 1, TechFieldID: 9},
	})
	assert.Equal(t, map[int64]int{1: 4, 2: 6}, labels)
}

func TestJoinIsInner(t *testing.T) {
	p := PivotObservations([]Observation{
		{UserID: 1, QuestionID: 1, Value: 5},
		{UserID: 2, QuestionID: 1, Value: 3},
		{UserID: 3, QuestionID: 2, Value: 1},
	})
	labels := map[int64]int{1: 7, 3: 8, 4: 9}

	d := Join(p, labels, "tech_field_id")

	assert.Equal(t, []int64{1, 3}, d.UserIDs)
	assert.Equal(t, []int{7, 8}, d.Labels)
	assert.Equal(t, [][]float64{{5, MissingValue}, {MissingValue, 1}}, d.Rows)
	assert.Equal(t, 2, d.MissingCells())
	assert.Equal(t, []int{7, 8}, d.Classes())
}
