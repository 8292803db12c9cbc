package dataset

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/vrash12/marcy/internal/models"
)

// Observation is a normalized answer ready for pivoting.
type Observation struct {
	UserID     int64
	QuestionID int64
	Value      float64
}

// EncodingTable maps, per question, each distinct non-numeric answer to
// its integer code. Codes start at 0 and follow the byte order of the
// raw strings, so they never collide with MissingValue.
type EncodingTable map[int64]map[string]int

// Code returns the code assigned to raw for questionID.
func (t EncodingTable) Code(questionID int64, raw string) (int, bool) {
	codes, ok := t[questionID]
	if !ok {
		return 0, false
	}
	c, ok := codes[raw]
	return c, ok
}

// Categories returns the encoded answers of a question in code order.
func (t EncodingTable) Categories(questionID int64) []string {
	codes := t[questionID]
	out := make([]string, len(codes))
	for raw, c := range codes {
		out[c] = raw
	}
	return out
}

// ParseNumeric reports whether raw is a finite number.
func ParseNumeric(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// BuildEncodingTable collects the non-numeric answers of each question and
// assigns codes in ascending lexicographic order.
func BuildEncodingTable(responses []models.Response) EncodingTable {
	distinct := make(map[int64]map[string]struct{})
	for _, r := range responses {
		raw, ok := rawAnswer(r)
		if !ok {
			continue
		}
		if _, numeric := ParseNumeric(raw); numeric {
			continue
		}
		set, ok := distinct[r.QuestionID]
		if !ok {
			set = make(map[string]struct{})
			distinct[r.QuestionID] = set
		}
		set[raw] = struct{}{}
	}

	table := make(EncodingTable, len(distinct))
	for qid, set := range distinct {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		codes := make(map[string]int, len(values))
		for i, v := range values {
			codes[v] = i
		}
		table[qid] = codes
	}
	return table
}

// Normalize converts raw responses into numeric observations, preserving
// input order. Empty and NULL answers produce no observation.
func Normalize(responses []models.Response) ([]Observation, EncodingTable) {
	table := BuildEncodingTable(responses)
	out := make([]Observation, 0, len(responses))
	for _, r := range responses {
		raw, ok := rawAnswer(r)
		if !ok {
			continue
		}
		v, numeric := ParseNumeric(raw)
		if !numeric {
			code, _ := table.Code(r.QuestionID, raw)
			v = float64(code)
		}
		out = append(out, Observation{UserID: r.UserID, QuestionID: r.QuestionID, Value: v})
	}
	return out, table
}

func rawAnswer(r models.Response) (string, bool) {
	if !r.Answer.Valid {
		return "", false
	}
	raw := strings.TrimSpace(r.Answer.String)
	if raw == "" {
		return "", false
	}
	return raw, true
}
