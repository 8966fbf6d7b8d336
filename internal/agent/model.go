package agent

import (
	"context"
	"fmt"
	"net/http"

	"github.com/querytrace/querytrace/internal/config"
)

// NewModel builds the chat model for the configured provider.
func NewModel(cfg config.AIConfig, httpClient *http.Client) (ChatModel, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAIModel(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, httpClient)
	case config.ProviderAnthropic:
		baseURL := cfg.BaseURL
		if baseURL == "https://api.openai.com" {
			baseURL = ""
		}
		return NewAnthropicModel(AnthropicConfig{
			BaseURL:         baseURL,
			APIKey:          cfg.APIKey,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			MaxOutputTokens: int64(cfg.MaxOutputTokens),
			Timeout:         cfg.Timeout,
		}, httpClient)
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
}

// NewModelFactory builds the model once and hands it to every run. A
// configuration problem is reported on each Build instead of at startup.
func NewModelFactory(cfg config.AIConfig, httpClient *http.Client) ModelFactory {
	model, err := NewModel(cfg, httpClient)
	return func(context.Context) (ChatModel, error) {
		if err != nil {
			return nil, err
		}
		return model, nil
	}
}
