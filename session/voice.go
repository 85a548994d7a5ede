package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jerhadf/voice-computer-use/config"
	"github.com/jerhadf/voice-computer-use/evi"
	"github.com/jerhadf/voice-computer-use/functions"
	"github.com/jerhadf/voice-computer-use/gemini"
	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/voice"
)

// ErrMissingCredentials is returned when neither the host nor the server
// configuration provides an API key.
var ErrMissingCredentials = errors.New("hume_api_key is required")

// NewVoiceFactory picks the backend named by cfg.VoiceBackend. Hume
// credentials sent by the host win over the server's own.
func NewVoiceFactory(cfg *config.Config) (VoiceFactory, error) {
	switch cfg.VoiceBackend {
	case config.BackendGemini:
		tools, err := functions.Load(cfg.GeminiTools)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, _ *messages.Args) (voice.Session, error) {
			return gemini.NewProxy(ctx, gemini.Config{
				APIKey:       cfg.GeminiAPIKey,
				Model:        cfg.GeminiModel,
				SystemPrompt: cfg.SystemPrompt,
				Tools:        tools,
			})
		}, nil
	case config.BackendHume, "":
		return func(_ context.Context, args *messages.Args) (voice.Session, error) {
			return newEVIClient(cfg, args)
		}, nil
	default:
		return nil, fmt.Errorf("unknown voice backend %q", cfg.VoiceBackend)
	}
}

func newEVIClient(cfg *config.Config, args *messages.Args) (*evi.Client, error) {
	apiKey, configID := cfg.HumeAPIKey, cfg.HumeConfigID
	if args != nil && args.HumeAPIKey != "" {
		apiKey = args.HumeAPIKey
	}
	if args != nil && args.ConfigID != "" {
		configID = args.ConfigID
	}
	if apiKey == "" {
		return nil, ErrMissingCredentials
	}
	return evi.New(evi.Config{
		URL:      cfg.EVIURL,
		APIKey:   apiKey,
		ConfigID: configID,
	}), nil
}
