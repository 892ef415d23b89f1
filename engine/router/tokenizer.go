package router

import (
	"context"

	"github.com/ccrouter/ccr/engine/retry"
)

// FallbackTokenCount is the degraded-mode token estimator used when no
// TokenizerService is configured, or the configured one errors: roughly 4
// characters per token, the same rule of thumb the upstream tokenizer
// falls back to rather than failing the request.
func FallbackTokenCount(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// countTokens counts tokens in text via rc.Tokenizer, wrapped in
// engine/retry so a transient tokenizer failure gets a bounded backoff
// retry before the router gives up and falls back to FallbackTokenCount.
func countTokens(ctx context.Context, rc *RouterContext, text string) int {
	if rc.Tokenizer == nil {
		return FallbackTokenCount(text)
	}
	var n int
	err := retry.WithRetry(ctx, "tokenizer.CountTokens", func(ctx context.Context) error {
		count, err := rc.Tokenizer.CountTokens(ctx, text)
		if err != nil {
			return err
		}
		n = count
		return nil
	})
	if err != nil {
		return FallbackTokenCount(text)
	}
	return n
}
