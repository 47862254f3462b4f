// Package embedder turns query text into a fixed-length vector: tokenize,
// run the encoder, then mean-pool the last hidden state over real tokens.
package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashwch/syntaxpilot/internal/inference"
	"github.com/ashwch/syntaxpilot/internal/tokenizer"
	"go.uber.org/zap"
)

// ErrShapeMismatch is an inference error: the runtime answered with a tensor
// that is not [1, seq_len, hidden_size].
var ErrShapeMismatch = fmt.Errorf("%w: output shape mismatch", inference.ErrInference)

// Vector is one pooled embedding. Its length is the model hidden size.
type Vector []float32

// Embedder holds the process-wide tokenizer and runtime handles. Both are
// read-only after construction, so one Embedder serves concurrent queries.
type Embedder struct {
	tok    tokenizer.Tokenizer
	rt     inference.Runtime
	hidden int
	logger *zap.Logger
}

func New(tok tokenizer.Tokenizer, rt inference.Runtime, hiddenSize int, logger *zap.Logger) (*Embedder, error) {
	if tok == nil {
		return nil, errors.New("embedder: tokenizer is required")
	}
	if rt == nil {
		return nil, errors.New("embedder: runtime is required")
	}
	if hiddenSize <= 0 {
		return nil, fmt.Errorf("embedder: hidden size must be positive, got %d", hiddenSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{tok: tok, rt: rt, hidden: hiddenSize, logger: logger.Named("embedder")}, nil
}

type LoadOptions struct {
	TokenizerPath string
	ModelPath     string
	LibraryPath   string
	OutputName    string
	HiddenSize    int
}

// Load is the one-time initialization step: it reads tokenizer.json and
// opens the ONNX session. Call Close when the process is done with it.
func Load(opts LoadOptions, logger *zap.Logger) (*Embedder, error) {
	tok, err := tokenizer.LoadHuggingFace(opts.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tokenizer.ErrTokenize, err)
	}
	rt, err := inference.NewONNXRuntime(inference.ONNXOptions{
		ModelPath:   opts.ModelPath,
		LibraryPath: opts.LibraryPath,
		OutputName:  opts.OutputName,
	})
	if err != nil {
		return nil, err
	}
	e, err := New(tok, rt, opts.HiddenSize, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return e, nil
}

func (e *Embedder) Dimensions() int {
	return e.hidden
}

func (e *Embedder) Close() error {
	return e.rt.Close()
}

// Embed fails with tokenizer.ErrTokenize or inference.ErrInference (which
// includes ErrShapeMismatch). Context errors are returned unwrapped.
func (e *Embedder) Embed(ctx context.Context, text string) (Vector, error) {
	enc, err := e.tok.Encode(text)
	if err != nil {
		if errors.Is(err, tokenizer.ErrTokenize) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", tokenizer.ErrTokenize, err)
	}
	if err := enc.Validate(); err != nil {
		return nil, err
	}

	out, err := e.rt.Run(ctx, inference.Input{
		IDs:           enc.IDs,
		AttentionMask: enc.AttentionMask,
		TokenTypeIDs:  enc.TokenTypeIDs(),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, inference.ErrInference) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", inference.ErrInference, err)
	}

	if err := e.checkShape(out, enc.Len()); err != nil {
		e.logger.Warn("rejected inference output", zap.Int64s("shape", out.Shape), zap.Int("tokens", enc.Len()))
		return nil, err
	}

	vec, err := MeanPool(out, enc.AttentionMask)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("embedded query", zap.Int("tokens", enc.Len()), zap.Int("dims", len(vec)))
	return vec, nil
}

func (e *Embedder) checkShape(t inference.Tensor, seqLen int) error {
	batch, seq, hidden, err := t.Dims3()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if batch != 1 || seq != seqLen || hidden != e.hidden {
		return fmt.Errorf("%w: got %v, want [1 %d %d]", ErrShapeMismatch, t.Shape, seqLen, e.hidden)
	}
	return nil
}

// MeanPool averages tensor[0, i, :] over the positions where mask[i] == 1.
// Sums accumulate position by position, dimension by dimension, and are
// divided by max(count, 1): an all-zero mask yields a zero vector.
func MeanPool(t inference.Tensor, mask []int64) (Vector, error) {
	_, seq, hidden, err := t.Dims3()
	if err != nil {
		return nil, err
	}
	if len(mask) != seq {
		return nil, fmt.Errorf("%w: mask has %d entries for %d positions", ErrShapeMismatch, len(mask), seq)
	}

	pooled := make(Vector, hidden)
	var count float32
	for i := 0; i < seq; i++ {
		if mask[i] != 1 {
			continue
		}
		row := t.Data[i*hidden : (i+1)*hidden]
		for j, v := range row {
			pooled[j] += v
		}
		count++
	}

	if count < 1 {
		count = 1
	}
	for j := range pooled {
		pooled[j] /= count
	}
	return pooled, nil
}
