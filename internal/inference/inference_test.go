package inference

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputValidate(t *testing.T) {
	tests := map[string]struct {
		in      Input
		wantErr bool
	}{
		"aligned": {
			in: Input{IDs: []int64{1, 2}, AttentionMask: []int64{1, 1}, TokenTypeIDs: []int64{0, 0}},
		},
		"empty": {
			in:      Input{},
			wantErr: true,
		},
		"mask-short": {
			in:      Input{IDs: []int64{1, 2}, AttentionMask: []int64{1}, TokenTypeIDs: []int64{0, 0}},
			wantErr: true,
		},
		"types-short": {
			in:      Input{IDs: []int64{1, 2}, AttentionMask: []int64{1, 1}, TokenTypeIDs: []int64{0}},
			wantErr: true,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInference))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTensorDims3(t *testing.T) {
	tests := map[string]struct {
		tensor  Tensor
		want    [3]int
		wantErr bool
	}{
		"valid": {
			tensor: Tensor{Shape: []int64{1, 2, 3}, Data: make([]float32, 6)},
			want:   [3]int{1, 2, 3},
		},
		"rank-two": {
			tensor:  Tensor{Shape: []int64{1, 6}, Data: make([]float32, 6)},
			wantErr: true,
		},
		"short-data": {
			tensor:  Tensor{Shape: []int64{1, 2, 3}, Data: make([]float32, 5)},
			wantErr: true,
		},
		"negative-dim": {
			tensor:  Tensor{Shape: []int64{1, -2, 3}, Data: make([]float32, 6)},
			wantErr: true,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			b, s, h, err := tt.tensor.Dims3()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInference))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, [3]int{b, s, h})
		})
	}
}

func TestNewONNXRuntimeMissingModel(t *testing.T) {
	_, err := NewONNXRuntime(ONNXOptions{ModelPath: filepath.Join(t.TempDir(), "model.onnx")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInference))
}

func TestRuntimeFunc(t *testing.T) {
	rt := RuntimeFunc(func(_ context.Context, in Input) (Tensor, error) {
		return Tensor{Shape: []int64{1, int64(len(in.IDs)), 1}, Data: make([]float32, len(in.IDs))}, nil
	})
	out, err := rt.Run(context.Background(), Input{IDs: []int64{1}, AttentionMask: []int64{1}, TokenTypeIDs: []int64{0}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 1, 1}, out.Shape)
	assert.NoError(t, rt.Close())
}
