package forest

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ExportNode is the readable form of a tree node.
type ExportNode struct {
	Feature   string             `yaml:"feature,omitempty"`
	Threshold *float64           `yaml:"threshold,omitempty"`
	Samples   int                `yaml:"samples"`
	Class     *int               `yaml:"class,omitempty"`
	Proba     map[string]float64 `yaml:"proba,omitempty"`
	Left      *ExportNode        `yaml:"left,omitempty"`
	Right     *ExportNode        `yaml:"right,omitempty"`
}

// ExportTree is the document produced for a single tree.
type ExportTree struct {
	ModelID  string      `yaml:"model_id"`
	Index    int         `yaml:"tree"`
	Trees    int         `yaml:"trees_in_forest"`
	Depth    int         `yaml:"depth"`
	Features []string    `yaml:"features"`
	Classes  []int       `yaml:"classes"`
	Root     *ExportNode `yaml:"root"`
}

// Export describes tree i with feature and class names resolved.
func (m *Model) Export(i int) (*ExportTree, error) {
	if i < 0 || i >= len(m.Forest.Trees) {
		return nil, fmt.Errorf("tree %d out of range [0,%d)", i, len(m.Forest.Trees))
	}
	t := m.Forest.Trees[i]
	return &ExportTree{
		ModelID:  m.ID,
		Index:    i,
		Trees:    len(m.Forest.Trees),
		Depth:    t.Depth(),
		Features: m.FeatureNames,
		Classes:  m.Forest.Classes,
		Root:     m.exportNode(t.Root),
	}, nil
}

// ExportYAML renders tree i as YAML.
func (m *Model) ExportYAML(i int) ([]byte, error) {
	doc, err := m.Export(i)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

func (m *Model) exportNode(n *Node) *ExportNode {
	if n == nil {
		return nil
	}
	out := &ExportNode{Samples: n.Samples}
	if n.Leaf {
		out.Proba = make(map[string]float64, len(n.Proba))
		best := 0
		for j, p := range n.Proba {
			out.Proba[strconv.Itoa(m.Forest.Classes[j])] = p
			if p > n.Proba[best] {
				best = j
			}
		}
		class := m.Forest.Classes[best]
		out.Class = &class
		return out
	}

	out.Feature = m.featureName(n.Feature)
	thr := n.Threshold
	out.Threshold = &thr
	out.Left = m.exportNode(n.Left)
	out.Right = m.exportNode(n.Right)
	return out
}

func (m *Model) featureName(j int) string {
	if j >= 0 && j < len(m.FeatureNames) {
		return m.FeatureNames[j]
	}
	return "f" + strconv.Itoa(j)
}
