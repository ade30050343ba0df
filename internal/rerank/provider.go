package rerank

import "sync"

// Scorer modes. The mode is resolved once from configuration at process
// start; the Reranker itself carries no mode branching.
const (
	ModeCrossEncoder = "cross-encoder"
	ModeLexical      = "lexical"
)

// ProviderConfig selects and configures the process-wide score provider.
type ProviderConfig struct {
	Mode    string // ModeCrossEncoder or ModeLexical
	BaseURL string // rerank API endpoint, cross-encoder mode only
	Model   string // cross-encoder model identifier
}

// providerCache initializes the shared score provider at most once per key
// and serves it read-only to all in-flight requests afterwards. Inference
// handles are expensive to build but safe for concurrent use.
type providerCache struct {
	mu        sync.Mutex
	providers map[string]ScoreProvider
}

var defaultCache = &providerCache{}

func (c *providerCache) get(cfg ProviderConfig) ScoreProvider {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cfg.Mode + "|" + cfg.BaseURL + "|" + cfg.Model
	if p, ok := c.providers[key]; ok {
		return p
	}

	var p ScoreProvider
	switch cfg.Mode {
	case ModeLexical:
		p = NewJaccardScorer()
	default:
		opts := []CrossEncoderOption{}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		if cfg.Model != "" {
			opts = append(opts, WithModel(cfg.Model))
		}
		p = NewCrossEncoderScorer(opts...)
	}

	if c.providers == nil {
		c.providers = make(map[string]ScoreProvider)
	}
	c.providers[key] = p
	return p
}

func (c *providerCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers = nil
}

// DefaultProvider returns the shared score provider for the given
// configuration, constructing it on first use.
func DefaultProvider(cfg ProviderConfig) ScoreProvider {
	return defaultCache.get(cfg)
}

// ResetDefault discards all cached providers. Intended for test isolation.
func ResetDefault() {
	defaultCache.reset()
}
