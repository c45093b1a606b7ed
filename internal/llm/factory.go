package llm

import (
	"fmt"
	"strings"

	"github.com/Veraticus/do-one-thing/internal/common"
)

// NewClient creates a raw provider client from the configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedProvider, cfg.Provider)
	}
}
