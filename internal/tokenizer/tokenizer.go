// Package tokenizer is the boundary to the text tokenizer. The embedder only
// sees Encoding values; where the vocabulary comes from is an adapter detail.
package tokenizer

import (
	"errors"
	"fmt"
)

// ErrTokenize is returned when text cannot be turned into an Encoding.
var ErrTokenize = errors.New("tokenization failed")

// Encoding is the tokenized form of one query. IDs and AttentionMask always
// have the same length.
type Encoding struct {
	IDs           []int64
	AttentionMask []int64
}

func (e Encoding) Len() int {
	return len(e.IDs)
}

// Validate checks the adapter contract: equal lengths, non-negative ids and
// a mask made only of zeros and ones.
func (e Encoding) Validate() error {
	if len(e.IDs) != len(e.AttentionMask) {
		return fmt.Errorf("%w: %d token ids but %d mask entries", ErrTokenize, len(e.IDs), len(e.AttentionMask))
	}
	if len(e.IDs) == 0 {
		return fmt.Errorf("%w: empty encoding", ErrTokenize)
	}
	for i, id := range e.IDs {
		if id < 0 {
			return fmt.Errorf("%w: negative token id %d at position %d", ErrTokenize, id, i)
		}
	}
	for i, m := range e.AttentionMask {
		if m != 0 && m != 1 {
			return fmt.Errorf("%w: attention mask value %d at position %d", ErrTokenize, m, i)
		}
	}
	return nil
}

// TokenTypeIDs returns the all-zero segment ids for single-sentence input.
func (e Encoding) TokenTypeIDs() []int64 {
	return make([]int64, len(e.IDs))
}

type Tokenizer interface {
	Encode(text string) (Encoding, error)
}

// Func adapts a plain function to Tokenizer.
type Func func(text string) (Encoding, error)

func (f Func) Encode(text string) (Encoding, error) {
	return f(text)
}

func fromInts(ids []int, mask []int) Encoding {
	out := Encoding{
		IDs:           make([]int64, len(ids)),
		AttentionMask: make([]int64, len(mask)),
	}
	for i, id := range ids {
		out.IDs[i] = int64(id)
	}
	for i, m := range mask {
		out.AttentionMask[i] = int64(m)
	}
	return out
}
