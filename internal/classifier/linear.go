package classifier

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"regexp"
	"strings"

	"classd/pkg/types"
)

// linearBundle is the on-disk shape of a linear-pipeline artifact: a tf-idf
// vectorizer paired with a linear classifier, exported together by the
// training collaborator.
type linearBundle struct {
	Vectorizer struct {
		Vocabulary  map[string]int `json:"vocabulary"`
		IDF         []float64      `json:"idf"`
		Lowercase   bool           `json:"lowercase"`
		SublinearTF bool           `json:"sublinear_tf"`
	} `json:"vectorizer"`
	Classifier struct {
		Kind      string      `json:"kind"`
		Classes   []int       `json:"classes"`
		Coef      [][]float64 `json:"coef"`
		Intercept []float64   `json:"intercept"`
	} `json:"classifier"`
}

// wordPattern mirrors the vectorizer's training-time token pattern:
// runs of two or more word characters.
var wordPattern = regexp.MustCompile(`\w\w+`)

// linearModel serves a deserialized vectorizer+classifier pair. The
// classifier's learned class identifiers are numeric; they are resolved
// against the descriptor's label names once, below, and never leak out.
type linearModel struct {
	id     string
	scheme types.LabelScheme

	vocab       map[string]int
	idf         []float64
	lowercase   bool
	sublinearTF bool

	// classSlot[j] is the scheme-order slot for classifier output j.
	classSlot []int
	coef      [][]float64
	intercept []float64
	binary    bool
}

func (l *Loader) loadLinear(ctx context.Context, d types.ModelDescriptor) (RuntimeModel, error) {
	b, err := os.ReadFile(d.Artifact)
	if err != nil {
		return nil, errLoad(d.ID, err)
	}
	var bundle linearBundle
	if err := json.Unmarshal(b, &bundle); err != nil {
		return nil, errLoadf(d.ID, "corrupt bundle: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := bundle.Vectorizer
	c := bundle.Classifier
	if len(v.Vocabulary) == 0 {
		return nil, errLoadf(d.ID, "bundle has empty vocabulary")
	}
	if len(v.IDF) != len(v.Vocabulary) {
		return nil, errLoadf(d.ID, "idf length %d does not match vocabulary size %d", len(v.IDF), len(v.Vocabulary))
	}
	for term, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(v.IDF) {
			return nil, errLoadf(d.ID, "vocabulary index %d for %q out of range", idx, term)
		}
	}
	if err := checkSchemeSize(d, len(c.Classes)); err != nil {
		return nil, err
	}
	binary := len(c.Classes) == 2 && len(c.Coef) == 1
	if !binary && len(c.Coef) != len(c.Classes) {
		return nil, errLoadf(d.ID, "coefficient rows %d do not match classes %d", len(c.Coef), len(c.Classes))
	}
	if len(c.Intercept) != len(c.Coef) {
		return nil, errLoadf(d.ID, "intercepts %d do not match coefficient rows %d", len(c.Intercept), len(c.Coef))
	}
	for i, row := range c.Coef {
		if len(row) != len(v.IDF) {
			return nil, errLoadf(d.ID, "coefficient row %d has %d features, vectorizer has %d", i, len(row), len(v.IDF))
		}
	}

	// Resolve numeric class ids against the descriptor's ordered label names.
	slots := make([]int, len(c.Classes))
	seen := make(map[int]bool, len(c.Classes))
	for j, cls := range c.Classes {
		if cls < 0 || cls >= len(d.Scheme.Labels) {
			return nil, errLoadf(d.ID, "schema mismatch: class id %d has no label in scheme of size %d", cls, len(d.Scheme.Labels))
		}
		if seen[cls] {
			return nil, errLoadf(d.ID, "schema mismatch: class id %d appears twice", cls)
		}
		seen[cls] = true
		slots[j] = cls
	}

	return &linearModel{
		id:          d.ID,
		scheme:      d.Scheme,
		vocab:       v.Vocabulary,
		idf:         v.IDF,
		lowercase:   v.Lowercase,
		sublinearTF: v.SublinearTF,
		classSlot:   slots,
		coef:        c.Coef,
		intercept:   c.Intercept,
		binary:      binary,
	}, nil
}

func (m *linearModel) ID() string                { return m.id }
func (m *linearModel) Scheme() types.LabelScheme { return m.scheme }
func (m *linearModel) Close() error              { return nil }

func (m *linearModel) Predict(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	features := m.vectorize(text)

	// Sparse dot products against each coefficient row.
	margins := make([]float64, len(m.coef))
	copy(margins, m.intercept)
	for idx, val := range features {
		for j := range m.coef {
			margins[j] += m.coef[j][idx] * val
		}
	}

	scores := make([]float64, len(m.scheme.Labels))
	if m.binary {
		// Single decision function: positive margin favors classes[1].
		p := sigmoid(margins[0])
		scores[m.classSlot[1]] = p
		scores[m.classSlot[0]] = 1 - p
	} else {
		for j, p := range softmax(margins) {
			scores[m.classSlot[j]] = p
		}
	}
	return Prediction{Scores: scores}, nil
}

// vectorize computes the l2-normalized tf-idf vector as a sparse index→value map.
func (m *linearModel) vectorize(text string) map[int]float64 {
	if m.lowercase {
		text = strings.ToLower(text)
	}
	counts := make(map[int]float64)
	for _, tok := range wordPattern.FindAllString(text, -1) {
		if idx, ok := m.vocab[tok]; ok {
			counts[idx]++
		}
	}
	norm := 0.0
	for idx, tf := range counts {
		if m.sublinearTF {
			tf = 1 + math.Log(tf)
		}
		v := tf * m.idf[idx]
		counts[idx] = v
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for idx := range counts {
			counts[idx] /= norm
		}
	}
	return counts
}
