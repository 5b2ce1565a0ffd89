package llm

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
)

// NewFromEnv returns a Client based on environment variables.
// With GOOGLE_API_KEY set, a Gemini-backed client is returned; otherwise a
// MockClient so the server stays usable in keyless development.
func NewFromEnv(ctx context.Context, model, embeddingModel string, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); key != "" {
		c, err := NewGemini(ctx, key, model, embeddingModel)
		if err == nil {
			return c
		}
		logger.Warn("gemini client init failed, falling back to mock", zap.Error(err))
	} else {
		logger.Warn("GOOGLE_API_KEY not set, using mock decision client")
	}
	return &MockClient{}
}
