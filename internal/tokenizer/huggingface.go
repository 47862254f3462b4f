package tokenizer

import (
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	hf "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// HFTokenizer encodes text with a HuggingFace tokenizer.json, the file the
// sentence-transformers ONNX export ships next to model.onnx.
type HFTokenizer struct {
	mu sync.Mutex
	tk *hf.Tokenizer
}

func LoadHuggingFace(path string) (*HFTokenizer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("tokenizer file: %w", err)
	}
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &HFTokenizer{tk: tk}, nil
}

func (t *HFTokenizer) Encode(text string) (Encoding, error) {
	if !utf8.ValidString(text) {
		return Encoding{}, fmt.Errorf("%w: input is not valid UTF-8", ErrTokenize)
	}

	// EncodeSingle is not documented as safe for concurrent use
	t.mu.Lock()
	en, err := t.tk.EncodeSingle(text, true)
	t.mu.Unlock()
	if err != nil {
		return Encoding{}, fmt.Errorf("%w: %v", ErrTokenize, err)
	}

	out := fromInts(en.GetIds(), en.GetAttentionMask())
	if err := out.Validate(); err != nil {
		return Encoding{}, err
	}
	return out, nil
}
