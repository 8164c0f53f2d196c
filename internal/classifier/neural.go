package classifier

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"classd/pkg/types"
)

var ortInitOnce sync.Once

// initRuntime initializes the process-wide onnxruntime environment once.
func initRuntime(libPath string) error {
	var initErr error
	ortInitOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		} else if env := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); env != "" {
			ort.SetSharedLibraryPath(env)
		}
		if !ort.IsInitialized() {
			initErr = ort.InitializeEnvironment()
		}
	})
	if initErr != nil {
		return fmt.Errorf("initialize onnxruntime: %w", initErr)
	}
	if !ort.IsInitialized() {
		return fmt.Errorf("onnxruntime environment not initialized")
	}
	return nil
}

// neuralModel serves a tokenizer + ONNX sequence-classification graph. The
// session runs over preallocated tensors, so predictions serialize on mu;
// the tensors hold exactly one request at a time.
type neuralModel struct {
	id     string
	scheme types.LabelScheme
	tok    *wordpieceTokenizer
	seqLen int

	mu            sync.Mutex
	closed        bool
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

func (l *Loader) loadNeural(ctx context.Context, d types.ModelDescriptor) (RuntimeModel, error) {
	if err := initRuntime(l.onnxLib); err != nil {
		return nil, errLoad(d.ID, err)
	}
	if _, err := os.Stat(d.Artifact); err != nil {
		return nil, errLoad(d.ID, err)
	}
	tok, err := loadWordPiece(d.Tokenizer)
	if err != nil {
		return nil, errLoadf(d.ID, "tokenizer: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The graph's classification width must match the scheme before the
	// model is ever promoted; a mismatch is a load failure, not a later
	// inference failure.
	_, outputs, err := ort.GetInputOutputInfoWithOptions(d.Artifact, nil)
	if err != nil {
		return nil, errLoadf(d.ID, "inspect onnx graph: %v", err)
	}
	dims, err := logitsDims(outputs)
	if err != nil {
		return nil, errLoad(d.ID, err)
	}
	if err := validateLogitsDims(d, dims); err != nil {
		return nil, err
	}

	seqLen := d.MaxTokens
	if seqLen <= 0 {
		seqLen = l.maxToken
	}
	if seqLen < 2 {
		// [CLS] and [SEP] alone need two slots.
		return nil, errLoadf(d.ID, "max_tokens %d too small for an encoded sequence", seqLen)
	}
	numLabels := len(d.Scheme.Labels)

	// Everything below allocates native resources; destroy them all on any
	// failure so a partial load leaves nothing behind.
	var kept bool
	inputShape := ort.NewShape(1, int64(seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, errLoadf(d.ID, "allocate input_ids tensor: %v", err)
	}
	defer func() {
		if !kept {
			inputIDs.Destroy()
		}
	}()
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, errLoadf(d.ID, "allocate attention_mask tensor: %v", err)
	}
	defer func() {
		if !kept {
			attnMask.Destroy()
		}
	}()
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(numLabels)))
	if err != nil {
		return nil, errLoadf(d.ID, "allocate output tensor: %v", err)
	}
	defer func() {
		if !kept {
			output.Destroy()
		}
	}()

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errLoadf(d.ID, "create session options: %v", err)
	}
	defer opts.Destroy()
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, errLoadf(d.ID, "set graph optimization: %v", err)
	}

	session, err := ort.NewAdvancedSession(
		d.Artifact,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, attnMask},
		[]ort.Value{output},
		opts,
	)
	if err != nil {
		return nil, errLoadf(d.ID, "create onnx session: %v", err)
	}

	kept = true
	return &neuralModel{
		id:            d.ID,
		scheme:        d.Scheme,
		tok:           tok,
		seqLen:        seqLen,
		session:       session,
		inputIDs:      inputIDs,
		attentionMask: attnMask,
		output:        output,
	}, nil
}

// logitsDims selects the classification output of a graph and returns its
// declared dimensions. Single-output graphs are taken as-is; otherwise the
// output must be named "logits".
func logitsDims(outputs []ort.InputOutputInfo) ([]int64, error) {
	switch len(outputs) {
	case 0:
		return nil, fmt.Errorf("onnx graph has no outputs")
	case 1:
		return outputs[0].Dimensions, nil
	}
	for _, out := range outputs {
		if strings.EqualFold(out.Name, "logits") {
			return out.Dimensions, nil
		}
	}
	names := make([]string, 0, len(outputs))
	for _, out := range outputs {
		names = append(names, out.Name)
	}
	return nil, fmt.Errorf("onnx graph has no logits output (found %s)", strings.Join(names, ", "))
}

// validateLogitsDims checks the declared output width against the scheme.
// A dynamic last dimension (<= 0) cannot be checked statically and is let
// through; exported classifiers declare it.
func validateLogitsDims(d types.ModelDescriptor, dims []int64) error {
	if len(dims) == 0 {
		return nil
	}
	width := dims[len(dims)-1]
	if width <= 0 {
		return nil
	}
	return checkSchemeSize(d, int(width))
}

func (m *neuralModel) ID() string                { return m.id }
func (m *neuralModel) Scheme() types.LabelScheme { return m.scheme }

func (m *neuralModel) Predict(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	ids, mask := m.tok.Encode(text, m.seqLen)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Prediction{}, fmt.Errorf("model %s is closed", m.id)
	}
	copy(m.inputIDs.GetData(), ids)
	copy(m.attentionMask.GetData(), mask)
	if err := m.session.Run(); err != nil {
		return Prediction{}, fmt.Errorf("onnx run: %w", err)
	}

	raw := m.output.GetData()
	logits := make([]float64, len(raw))
	for i, v := range raw {
		logits[i] = float64(v)
	}

	var scores []float64
	if m.scheme.Kind == types.SchemeMultiLabel {
		// Independent per-category probabilities.
		scores = make([]float64, len(logits))
		for i, v := range logits {
			scores[i] = sigmoid(v)
		}
	} else {
		scores = softmax(logits)
	}
	return Prediction{Scores: scores}, nil
}

func (m *neuralModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	err := m.session.Destroy()
	m.inputIDs.Destroy()
	m.attentionMask.Destroy()
	m.output.Destroy()
	return err
}
