// Package inference is the boundary to the transformer runtime: three [1, N]
// int64 inputs go in, one float32 tensor comes out.
package inference

import (
	"context"
	"errors"
	"fmt"
)

// ErrInference covers missing model artifacts, runtime failures and output
// tensors that do not have the expected layout.
var ErrInference = errors.New("inference failed")

type Input struct {
	IDs           []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

func (in Input) Validate() error {
	n := len(in.IDs)
	if n == 0 {
		return fmt.Errorf("%w: empty input", ErrInference)
	}
	if len(in.AttentionMask) != n || len(in.TokenTypeIDs) != n {
		return fmt.Errorf("%w: input lengths differ: ids=%d mask=%d types=%d",
			ErrInference, n, len(in.AttentionMask), len(in.TokenTypeIDs))
	}
	return nil
}

// Tensor is a dense row-major float32 tensor.
type Tensor struct {
	Shape []int64
	Data  []float32
}

func (t Tensor) Rank() int {
	return len(t.Shape)
}

// Elements returns the element count implied by Shape.
func (t Tensor) Elements() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	total := int64(1)
	for _, d := range t.Shape {
		total *= d
	}
	return total
}

// Dims3 unpacks a rank-3 shape and checks that Data is large enough for it.
func (t Tensor) Dims3() (batch, seq, hidden int, err error) {
	if t.Rank() != 3 {
		return 0, 0, 0, fmt.Errorf("%w: expected rank 3 output, got rank %d %v", ErrInference, t.Rank(), t.Shape)
	}
	for _, d := range t.Shape {
		if d < 0 {
			return 0, 0, 0, fmt.Errorf("%w: negative dimension in %v", ErrInference, t.Shape)
		}
	}
	if int64(len(t.Data)) != t.Elements() {
		return 0, 0, 0, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrInference, t.Shape, t.Elements(), len(t.Data))
	}
	return int(t.Shape[0]), int(t.Shape[1]), int(t.Shape[2]), nil
}

type Runtime interface {
	Run(ctx context.Context, in Input) (Tensor, error)
	Close() error
}

// RuntimeFunc adapts a function to Runtime. Close is a no-op.
type RuntimeFunc func(ctx context.Context, in Input) (Tensor, error)

func (f RuntimeFunc) Run(ctx context.Context, in Input) (Tensor, error) {
	return f(ctx, in)
}

func (f RuntimeFunc) Close() error {
	return nil
}
