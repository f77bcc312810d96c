package nlp

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/claimlens/claimlens/internal/config"
)

const (
	defaultIntraThreads = 1
	defaultInterThreads = 1
	defaultSeqLen       = 256
)

// RuntimeSettings are the resolved ONNX runtime knobs shared by every model.
type RuntimeSettings struct {
	MaxSessions  int
	IntraThreads int
	InterThreads int
}

// ResolveRuntime applies env overrides and defaults to the configured runtime.
// CLAIMLENS_MAX_SESSIONS, CLAIMLENS_INTRA_THREADS and CLAIMLENS_INTER_THREADS win over config.
func ResolveRuntime(cfg config.RuntimeConfig) RuntimeSettings {
	rt := RuntimeSettings{
		MaxSessions:  cfg.MaxSessions,
		IntraThreads: cfg.IntraThreads,
		InterThreads: cfg.InterThreads,
	}
	if v, ok := envInt("CLAIMLENS_MAX_SESSIONS"); ok {
		rt.MaxSessions = v
	}
	if v, ok := envInt("CLAIMLENS_INTRA_THREADS"); ok {
		rt.IntraThreads = v
	}
	if v, ok := envInt("CLAIMLENS_INTER_THREADS"); ok {
		rt.InterThreads = v
	}
	if rt.MaxSessions <= 0 {
		rt.MaxSessions = min(runtime.NumCPU(), 4)
	}
	if rt.IntraThreads <= 0 {
		rt.IntraThreads = defaultIntraThreads
	}
	if rt.InterThreads <= 0 {
		rt.InterThreads = defaultInterThreads
	}
	return rt
}

func envInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

var initMu sync.Mutex

// initRuntime loads the onnxruntime shared library once per process.
func initRuntime(bundleDir string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	libPath := resolveSharedLibraryPath(bundleDir)
	if libPath == "" {
		return fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime: %w", ErrModelUnavailable)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %v: %w", err, ErrModelUnavailable)
	}
	return nil
}

// resolveSharedLibraryPath attempts to locate a platform-specific onnxruntime shared library.
// If ONNXRUNTIME_SHARED_LIBRARY_PATH is set, it wins; otherwise we probe common names/locations.
func resolveSharedLibraryPath(bundleDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		bundleDir,
		filepath.Join(bundleDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// resolveModelPath prefers a quantized model.int8.onnx next to the configured file.
func resolveModelPath(modelDir string) string {
	for _, name := range []string{"model.int8.onnx", "model.onnx"} {
		candidate := filepath.Join(modelDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

type onnxSession struct {
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

func (s *onnxSession) destroy() {
	if s == nil {
		return
	}
	if s.session != nil {
		_ = s.session.Destroy()
	}
	for _, t := range []*ort.Tensor[int64]{s.inputIDs, s.attentionMask, s.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if s.output != nil {
		_ = s.output.Destroy()
	}
}

// feed copies encoded inputs into the session tensors. Token types are always zero.
func (s *onnxSession) feed(inputIDs, attn []int64) {
	copy(s.inputIDs.GetData(), inputIDs)
	copy(s.attentionMask.GetData(), attn)
	if s.tokenTypeIDs != nil {
		clear(s.tokenTypeIDs.GetData())
	}
}

func newSession(modelPath string, seqLen, numLabels int, outputDims []int64, rt RuntimeSettings, tokenClassification, includeTokenType bool, outputName string) (*onnxSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}
	if err := opts.SetIntraOpNumThreads(rt.IntraThreads); err != nil {
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(rt.InterThreads); err != nil {
		return nil, fmt.Errorf("set inter threads: %w", err)
	}

	ss := &onnxSession{}
	inputShape := ort.NewShape(1, int64(seqLen))
	if ss.inputIDs, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	if ss.attentionMask, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		ss.destroy()
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	if includeTokenType {
		if ss.tokenTypeIDs, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
			ss.destroy()
			return nil, fmt.Errorf("allocate token_type_ids tensor: %w", err)
		}
	}
	outputShape := buildOutputShape(outputDims, seqLen, numLabels, tokenClassification)
	if ss.output, err = ort.NewEmptyTensor[float32](outputShape); err != nil {
		ss.destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	inputNames := []string{"input_ids", "attention_mask"}
	inputValues := []ort.Value{ss.inputIDs, ss.attentionMask}
	if ss.tokenTypeIDs != nil {
		inputNames = append(inputNames, "token_type_ids")
		inputValues = append(inputValues, ss.tokenTypeIDs)
	}
	if outputName == "" {
		outputName = "logits"
	}
	ss.session, err = ort.NewAdvancedSession(
		modelPath,
		inputNames,
		[]string{outputName},
		inputValues,
		[]ort.Value{ss.output},
		opts,
	)
	if err != nil {
		ss.destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return ss, nil
}

func selectOutputInfo(modelPath string) (string, []int64, error) {
	_, outputs, err := ort.GetInputOutputInfoWithOptions(modelPath, nil)
	if err != nil {
		return "", nil, err
	}
	if len(outputs) == 0 {
		return "", nil, fmt.Errorf("no outputs found")
	}
	for _, out := range outputs {
		if strings.EqualFold(out.Name, "logits") {
			return out.Name, out.Dimensions, nil
		}
	}
	if len(outputs) == 1 {
		return outputs[0].Name, outputs[0].Dimensions, nil
	}
	names := make([]string, 0, len(outputs))
	for _, out := range outputs {
		names = append(names, out.Name)
	}
	return "", nil, fmt.Errorf("multiple outputs found without logits: %v", names)
}

// buildOutputShape resolves dynamic (<=0) dims: [batch, labels] for sequence
// models and [batch, seq, labels] for token models.
func buildOutputShape(dims []int64, seqLen, numLabels int, tokenClassification bool) ort.Shape {
	if len(dims) == 0 {
		if tokenClassification {
			return ort.NewShape(1, int64(seqLen), int64(numLabels))
		}
		return ort.NewShape(1, int64(numLabels))
	}
	shape := make([]int64, len(dims))
	for i, v := range dims {
		switch {
		case v > 0:
			shape[i] = v
		case tokenClassification && i == 1:
			shape[i] = int64(seqLen)
		case i == len(dims)-1 && numLabels > 0:
			shape[i] = int64(numLabels)
		default:
			shape[i] = 1
		}
	}
	return ort.Shape(shape)
}
