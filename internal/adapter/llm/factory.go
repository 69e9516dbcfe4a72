package llm

import (
	"strings"
	"time"

	"github.com/xiaot623/gogo/convo/internal/logger"
)

const (
	// EnvConvoMode is the environment variable name for mode selection.
	EnvConvoMode = "CONVO_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient creates a model client for mode. Mode MOCK returns a
// MockClient; anything else returns a real Client.
func NewLLMClient(mode, baseURL, apiKey string, timeout time.Duration, log *logger.Logger) LLMClient {
	if strings.EqualFold(mode, ModeMock) {
		log.Info("mock mode detected, using mock model client", "env", EnvConvoMode)
		return NewMockClient()
	}

	return NewClient(baseURL, apiKey, timeout)
}
