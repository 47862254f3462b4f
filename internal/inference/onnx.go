package inference

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Input names used by sentence-transformers BERT-style exports.
var DefaultInputNames = []string{"input_ids", "attention_mask", "token_type_ids"}

type ONNXOptions struct {
	ModelPath   string
	LibraryPath string
	InputNames  []string
	OutputName  string
}

// ONNXRuntime runs one loaded model. It is created once per process and is
// safe to share between goroutines; onnxruntime sessions allow concurrent Run.
type ONNXRuntime struct {
	session *ort.DynamicAdvancedSession
	once    sync.Once
}

var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 && !ort.IsInitialized() {
		if strings.TrimSpace(libraryPath) != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("%w: initialize onnxruntime: %v", ErrInference, err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		return
	}
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

func NewONNXRuntime(opts ONNXOptions) (*ONNXRuntime, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model artifact: %v", ErrInference, err)
	}
	inputNames := opts.InputNames
	if len(inputNames) == 0 {
		inputNames = DefaultInputNames
	}
	if len(inputNames) != 3 {
		return nil, fmt.Errorf("%w: expected 3 input names, got %d", ErrInference, len(inputNames))
	}
	outputName := strings.TrimSpace(opts.OutputName)
	if outputName == "" {
		outputName = "last_hidden_state"
	}

	if err := acquireEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}
	session, err := ort.NewDynamicAdvancedSession(opts.ModelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		releaseEnvironment()
		return nil, fmt.Errorf("%w: load %s: %v", ErrInference, opts.ModelPath, err)
	}
	return &ONNXRuntime{session: session}, nil
}

func (r *ONNXRuntime) Run(ctx context.Context, in Input) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}
	if err := in.Validate(); err != nil {
		return Tensor{}, err
	}

	shape := ort.NewShape(1, int64(len(in.IDs)))
	inputs := make([]ort.Value, 0, 3)
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	for _, data := range [][]int64{in.IDs, in.AttentionMask, in.TokenTypeIDs} {
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			return Tensor{}, fmt.Errorf("%w: build input tensor: %v", ErrInference, err)
		}
		inputs = append(inputs, tensor)
	}

	// a nil output lets onnxruntime allocate it with the shape it produced
	outputs := []ort.Value{nil}
	if err := r.session.Run(inputs, outputs); err != nil {
		return Tensor{}, fmt.Errorf("%w: run: %v", ErrInference, err)
	}
	if outputs[0] == nil {
		return Tensor{}, fmt.Errorf("%w: runtime returned no output", ErrInference)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return Tensor{}, fmt.Errorf("%w: output is %T, want float32 tensor", ErrInference, outputs[0])
	}

	// the tensor's memory is freed by Destroy, so copy it out
	data := append([]float32(nil), out.GetData()...)
	dims := append([]int64(nil), out.GetShape()...)
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}
	return Tensor{Shape: dims, Data: data}, nil
}

func (r *ONNXRuntime) Close() error {
	var err error
	r.once.Do(func() {
		if r.session != nil {
			err = r.session.Destroy()
		}
		releaseEnvironment()
	})
	return err
}
