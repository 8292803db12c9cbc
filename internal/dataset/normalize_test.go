package dataset

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrash12/marcy/internal/models"
)

func resp(user, question int64, answer string) models.Response {
	return models.Response{UserID: user, QuestionID: question, Answer: sql.NullString{String: answer, Valid: true}}
}

func nullResp(user, question int64) models.Response {
	return models.Response{UserID: user, QuestionID: question}
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"3", 3, true},
		{" 4.5 ", 4.5, true},
		{"-1", -1, true},
		{"1e3", 1000, true},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"yes", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			v, ok := ParseNumeric(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, v)
		})
	}
}

func TestBuildEncodingTableSortsPerQuestion(t *testing.T) {
	responses := []models.Response{
		resp(1, 10, "python"),
		resp(2, 10, "go"),
		resp(3, 10, "java"),
		resp(1, 11, "zeta"),
		resp(2, 11, "alpha"),
		resp(3, 10, "go"),
		resp(3, 12, "5"),
	}

	table := BuildEncodingTable(responses)

	assert.Equal(t, map[string]int{"go": 0, "java": 1, "python": 2}, table[10])
	assert.Equal(t, map[string]int{"alpha": 0, "zeta": 1}, table[11])
	assert.NotContains(t, table, int64(12))
	assert.Equal(t, []string{"go", "java", "python"}, table.Categories(10))

	again := BuildEncodingTable(responses)
	assert.Equal(t, table, again)
}

func TestNormalize(t *testing.T) {
	responses := []models.Response{
		resp(1, 10, "4"),
		resp(1, 11, "B"),
		resp(2, 11, "A"),
		nullResp(2, 10),
		resp(3, 10, "   "),
		resp(3, 12, "2.5"),
	}

	obs, table := Normalize(responses)

	require.Len(t, obs, 4)
	assert.Equal(t, Observation{UserID: 1, QuestionID: 10, Value: 4}, obs[0])
	assert.Equal(t, Observation{UserID: 1, QuestionID: 11, Value: 1}, obs[1])
	assert.Equal(t, Observation{UserID: 2, QuestionID: 11, Value: 0}, obs[2])
	assert.Equal(t, Observation{UserID: 3, QuestionID: 12, Value: 2.5}, obs[3])

	code, ok := table.Code(11, "B")
	assert.True(t, ok)
	assert.Equal(t, 1, code)
	_, ok = table.Code(10, "B")
	assert.False(t, ok)
}
