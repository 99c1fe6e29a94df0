package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/clinicdesk/internal/assistant"
	appconfig "github.com/wolfman30/clinicdesk/internal/config"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// BuildAssistantModel wires the Gemini model behind the assistant chat.
// It returns nil when no API key is configured; typed commands still work.
func BuildAssistantModel(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*assistant.GeminiModel, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		logger.Info("assistant chat disabled: GEMINI_API_KEY not set")
		return nil, nil
	}
	modelID := strings.TrimSpace(cfg.GeminiModelID)
	if modelID == "" {
		logger.Warn("assistant chat disabled: model id empty")
		return nil, nil
	}
	model, err := assistant.NewGeminiModel(ctx, cfg.GeminiAPIKey, modelID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: gemini: %w", err)
	}
	logger.Info("assistant chat enabled", "model", modelID)
	return model, nil
}
