// Package tokenizer wraps pkoukk/tiktoken-go as the router's
// TokenizerService implementation, used to decide whether a request
// crosses the long-context threshold.
package tokenizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// Tokenizer counts tokens for a fixed encoding, lazily initialized and
// reused across calls (tiktoken.GetEncoding loads and caches BPE ranks, an
// expensive operation worth paying once per process).
type Tokenizer struct {
	mu       sync.Mutex
	encoding string
	enc      *tiktoken.Tiktoken
}

// New returns a Tokenizer for the given encoding name (cl100k_base when
// empty).
func New(encoding string) *Tokenizer {
	if encoding == "" {
		encoding = defaultEncoding
	}
	return &Tokenizer{encoding: encoding}
}

// CountTokens implements engine/router.TokenizerService.
func (t *Tokenizer) CountTokens(_ context.Context, text string) (int, error) {
	enc, err := t.encoder()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

func (t *Tokenizer) encoder() (*tiktoken.Tiktoken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enc != nil {
		return t.enc, nil
	}
	enc, err := tiktoken.GetEncoding(t.encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", t.encoding, err)
	}
	t.enc = enc
	return enc, nil
}
