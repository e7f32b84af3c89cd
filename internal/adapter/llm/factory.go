package llm

import (
	"log"
	"os"
	"time"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "VIBECODER_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewGenerator creates a generative client based on the VIBECODER_MODE
// environment variable. If VIBECODER_MODE=MOCK, returns a MockClient;
// otherwise returns a real Client.
func NewGenerator(baseURL, apiKey, model string, timeout time.Duration) Generator {
	if os.Getenv(EnvMode) == ModeMock {
		log.Println("VIBECODER_MODE=MOCK detected, using mock generative client")
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, model, timeout)
}
