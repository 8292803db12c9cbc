package dataset

import (
	"sort"

	"github.com/vrash12/marcy/internal/models"
)

// Dataset is the training table: feature columns plus one label per row.
type Dataset struct {
	FeatureNames []string
	QuestionIDs  []int64
	LabelColumn  string

	UserIDs []int64
	Rows    [][]float64
	// Missing flags cells that hold MissingValue because no answer exists.
	Missing [][]bool
	Labels  []int
}

// FirstLabels keeps the first recommendation seen for each user.
func FirstLabels(recs []models.Recommendation) map[int64]int {
	labels := make(map[int64]int, len(recs))
	for _, r := range recs {
		if _, ok := labels[r.UserID]; ok {
			continue
		}
		labels[r.UserID] = r.TechFieldID
	}
	return labels
}

// Join attaches labels to pivoted rows. Only users present in both the
// pivot and labels survive.
func Join(p *Pivot, labels map[int64]int, labelColumn string) *Dataset {
	d := &Dataset{
		FeatureNames: p.FeatureNames(),
		QuestionIDs:  append([]int64(nil), p.QuestionIDs...),
		LabelColumn:  labelColumn,
	}
	for _, row := range p.Rows {
		label, ok := labels[row.UserID]
		if !ok {
			continue
		}
		values, missing := row.Vector(p.QuestionIDs)
		d.UserIDs = append(d.UserIDs, row.UserID)
		d.Rows = append(d.Rows, values)
		d.Missing = append(d.Missing, missing)
		d.Labels = append(d.Labels, label)
	}
	return d
}

// Len is the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Classes returns the distinct labels in ascending order.
func (d *Dataset) Classes() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, l := range d.Labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// MissingCells counts cells filled with MissingValue.
func (d *Dataset) MissingCells() int {
	n := 0
	for _, row := range d.Missing {
		for _, m := range row {
			if m {
				n++
			}
		}
	}
	return n
}
