package classifier

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/symptom-checker/internal/features"
)

// Node is one node of a flattened decision tree. Leaves have Left == Right == -1.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

func (n Node) leaf() bool {
	return n.Left < 0 && n.Right < 0
}

// Tree is a flattened decision tree rooted at node 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// treeEnsemble averages the normalised leaf distributions of its trees
type treeEnsemble struct {
	schema  features.Schema
	classes []int
	trees   []Tree
}

func newTreeEnsemble(a *Artifact) (*treeEnsemble, error) {
	if len(a.Trees) == 0 {
		return nil, fmt.Errorf("tree ensemble has no trees")
	}
	for ti, tree := range a.Trees {
		if err := validateTree(tree, len(a.Columns), len(a.Classes)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti, err)
		}
	}
	return &treeEnsemble{
		schema:  append(features.Schema(nil), a.Columns...),
		classes: append([]int(nil), a.Classes...),
		trees:   a.Trees,
	}, nil
}

func validateTree(tree Tree, columns, classes int) error {
	if len(tree.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range tree.Nodes {
		if n.leaf() {
			if len(n.Value) != classes {
				return fmt.Errorf("leaf %d has %d class counts, want %d", i, len(n.Value), classes)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= columns {
			return fmt.Errorf("node %d splits on unknown feature %d", i, n.Feature)
		}
		// children always come after their parent, which also rules out cycles
		if n.Left <= i || n.Left >= len(tree.Nodes) || n.Right <= i || n.Right >= len(tree.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

func (t Tree) leafFor(row features.FeatureRow) Node {
	n := t.Nodes[0]
	for !n.leaf() {
		if row.At(n.Feature) <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n
}

func (m *treeEnsemble) Columns() features.Schema {
	return append(features.Schema(nil), m.schema...)
}

func (m *treeEnsemble) PredictProba(ctx context.Context, row features.FeatureRow) ([]float64, error) {
	if err := checkRow(m.schema, row); err != nil {
		return nil, err
	}

	proba := make([]float64, len(m.classes))
	for _, tree := range m.trees {
		leaf := tree.leafFor(row)
		total := 0.0
		for _, v := range leaf.Value {
			total += v
		}
		if total == 0 {
			continue
		}
		for i, v := range leaf.Value {
			proba[i] += v / total
		}
	}

	n := float64(len(m.trees))
	for i := range proba {
		proba[i] /= n
	}
	return proba, nil
}

func (m *treeEnsemble) Predict(ctx context.Context, row features.FeatureRow) (int, error) {
	score, err := m.Score(ctx, row)
	if err != nil {
		return 0, err
	}
	return score.Label, nil
}

func (m *treeEnsemble) Score(ctx context.Context, row features.FeatureRow) (Score, error) {
	proba, err := m.PredictProba(ctx, row)
	if err != nil {
		return Score{}, err
	}
	return scoreLocal(m.classes, proba), nil
}
