package server

import (
	"fmt"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/backend"
	"github.com/kartoza/attention-is-key/internal/config"
	"github.com/kartoza/attention-is-key/internal/nn"
)

// NewAnalyzer builds the analysis engine selected by cfg.Engine
func NewAnalyzer(cfg config.Config) (attention.Analyzer, error) {
	match := attention.MatchOptions{CaseInsensitive: cfg.CaseInsensitive}

	switch cfg.Engine {
	case config.EngineMock, "":
		return attention.NewMockAnalyzer(cfg.Seed, cfg.MockLatency, match), nil
	case config.EngineLocal:
		modelCfg := nn.DefaultAttentionModelConfig()
		modelCfg.Seed = cfg.Seed
		return nn.NewAnalyzer(modelCfg, match), nil
	case config.EngineRemote:
		if cfg.BackendURL == "" {
			return nil, fmt.Errorf("remote engine requires a backend URL")
		}
		return backend.NewClient(cfg.BackendURL, cfg.AnalysisTimeout), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
