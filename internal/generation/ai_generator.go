package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/localrivet/kbrag/internal/generation/providers"
	"github.com/localrivet/kbrag/internal/telemetry"
)

const (
	// Default settings
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 2
	DefaultRetryDelay    = 2 * time.Second
	DefaultCacheCapacity = 1000
	DefaultCacheTTL      = 24 * time.Hour
)

// Errors
var (
	ErrGenerationFailed = errors.New("generation failed")
	ErrConfigError      = errors.New("configuration error")
	ErrContextCanceled  = errors.New("context canceled")
)

// ProviderCredential identifies one configured generation provider.
type ProviderCredential struct {
	Name    string
	ModelID string
	APIKey  string
}

// Config holds configuration for the AIGenerator.
type Config struct {
	ProviderName  string
	ModelID       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	CacheCapacity int
	CacheTTL      time.Duration
	Fallbacks     []ProviderCredential
}

// AIGenerator completes prompts through a primary LLM provider, retrying
// transient failures and falling back to alternate providers before giving
// up. Completions are cached by prompt hash; with temperature pinned to
// zero, a cached completion is indistinguishable from a fresh one.
type AIGenerator struct {
	config              Config
	provider            providers.LLMProvider
	fallbackProviders   []providers.LLMProvider
	timeout             time.Duration
	maxRetries          int
	retryDelay          time.Duration
	cache               *responseCache
	providerInitialized bool
	providerFactory     *providers.ProviderFactory
	metrics             *telemetry.MetricsCollector
	mu                  sync.RWMutex
}

// responseCache provides thread-safe caching of completions
type responseCache struct {
	items    map[string]cachedResponse
	capacity int
	ttl      time.Duration
	mu       sync.RWMutex
}

// cachedResponse is a completion with an expiration time
type cachedResponse struct {
	text     string
	expireAt time.Time
}

// NewAIGenerator creates an AIGenerator from the given configuration,
// applying defaults for unset fields. Provider construction is deferred to
// Initialize (or the first Complete call).
func NewAIGenerator(config Config) *AIGenerator {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.CacheCapacity <= 0 {
		config.CacheCapacity = DefaultCacheCapacity
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}

	return &AIGenerator{
		config:     config,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
		cache: &responseCache{
			items:    make(map[string]cachedResponse),
			capacity: config.CacheCapacity,
			ttl:      config.CacheTTL,
		},
		metrics: telemetry.NewMetricsCollector(),
	}
}

// Initialize constructs the primary provider and the fallback chain. A
// missing credential for the primary provider is a configuration error that
// no amount of retrying can fix.
func (g *AIGenerator) Initialize() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.providerInitialized {
		return nil
	}

	if g.provider == nil {
		providerName := g.config.ProviderName
		if providerName == "" {
			providerName = providers.ProviderGoogle
		}
		if g.config.APIKey == "" {
			return fmt.Errorf("%w: missing API key for provider %s", ErrConfigError, providerName)
		}

		providerConfigs := map[string]providers.Config{
			providerName: {
				ModelID: g.config.ModelID,
				APIKey:  g.config.APIKey,
			},
		}

		var preferenceOrder []string
		for _, fallback := range g.config.Fallbacks {
			if fallback.Name == providerName || fallback.Name == "" || fallback.APIKey == "" {
				continue
			}
			providerConfigs[fallback.Name] = providers.Config{
				ModelID: fallback.ModelID,
				APIKey:  fallback.APIKey,
			}
			preferenceOrder = append(preferenceOrder, fallback.Name)
		}

		g.providerFactory = providers.NewProviderFactory(providerConfigs)

		primary, err := g.providerFactory.GetProvider(providerName)
		if err != nil {
			return fmt.Errorf("failed to create primary provider: %w", err)
		}
		g.provider = primary

		// The chain must not contain the primary; it already had its turn.
		for _, candidate := range g.providerFactory.GetProviderChain(preferenceOrder) {
			if candidate.Name() == primary.Name() {
				continue
			}
			g.fallbackProviders = append(g.fallbackProviders, candidate)
		}
	}

	g.providerInitialized = true
	return nil
}

// Complete produces a completion for the prompt, consulting the cache first,
// then the primary provider with retries, then each fallback provider.
func (g *AIGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	startTime := time.Now()
	defer func() {
		g.metrics.RecordTimer("generator.total_time", time.Since(startTime))
	}()

	g.mu.RLock()
	initialized := g.providerInitialized
	g.mu.RUnlock()
	if !initialized {
		if err := g.Initialize(); err != nil {
			return "", fmt.Errorf("failed to initialize generator: %w", err)
		}
	}

	if text, found := g.checkCache(prompt); found {
		g.metrics.IncrementCounter(telemetry.MetricCacheHits, 1)
		return text, nil
	}
	g.metrics.IncrementCounter(telemetry.MetricCacheMisses, 1)

	g.mu.RLock()
	primary := g.provider
	fallbacks := g.fallbackProviders
	g.mu.RUnlock()

	if primary == nil {
		return "", fmt.Errorf("%w: no generation provider available", ErrConfigError)
	}

	g.metrics.IncrementCounter(apiCallMetric(primary.Name()), 1)
	primaryStart := time.Now()
	text, err := g.completeWithRetries(ctx, primary, prompt)
	if err == nil {
		g.cacheResult(prompt, text)
		g.metrics.IncrementCounter(telemetry.MetricAPICallsSuccess, 1)
		g.recordResponseTime(primary.Name(), time.Since(primaryStart))
		return text, nil
	}
	g.metrics.IncrementCounter(telemetry.MetricAPICallsFailure, 1)

	lastErr := err
	for _, fallback := range fallbacks {
		g.metrics.IncrementCounter(telemetry.MetricFallbackAttempts, 1)
		g.metrics.IncrementCounter(apiCallMetric(fallback.Name()), 1)

		fallbackStart := time.Now()
		text, err = g.completeWithRetries(ctx, fallback, prompt)
		if err == nil {
			g.cacheResult(prompt, text)
			g.metrics.IncrementCounter(telemetry.MetricAPICallsSuccess, 1)
			g.metrics.IncrementCounter(telemetry.MetricFallbackSuccess, 1)
			g.recordResponseTime(fallback.Name(), time.Since(fallbackStart))
			return text, nil
		}

		g.metrics.IncrementCounter(telemetry.MetricAPICallsFailure, 1)
		lastErr = err
	}

	return "", fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
}

// completeWithRetries attempts the prompt against one provider, backing off
// linearly between attempts. Each attempt gets its own timeout so a slow
// first try cannot starve the retries.
func (g *AIGenerator) completeWithRetries(ctx context.Context, provider providers.LLMProvider, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return "", ErrContextCanceled
		default:
		}

		if attempt > 0 {
			g.metrics.IncrementCounter(telemetry.MetricRetryAttempts, 1)
			time.Sleep(g.retryDelay * time.Duration(attempt))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		text, err := provider.Complete(attemptCtx, prompt)
		cancel()

		if err == nil {
			if attempt > 0 {
				g.metrics.IncrementCounter(telemetry.MetricRetrySuccess, 1)
			}
			return text, nil
		}

		lastErr = err
	}

	return "", lastErr
}

// checkCache looks for a cached completion for the prompt.
func (g *AIGenerator) checkCache(prompt string) (string, bool) {
	key := cacheKey(prompt)

	g.cache.mu.RLock()
	defer g.cache.mu.RUnlock()

	if item, exists := g.cache.items[key]; exists {
		if time.Now().Before(item.expireAt) {
			return item.text, true
		}
	}

	return "", false
}

// cacheResult stores a completion in the cache.
func (g *AIGenerator) cacheResult(prompt, text string) {
	key := cacheKey(prompt)

	g.cache.mu.Lock()
	defer g.cache.mu.Unlock()

	// Evict an arbitrary entry to stay within capacity.
	if len(g.cache.items) >= g.cache.capacity {
		for k := range g.cache.items {
			delete(g.cache.items, k)
			break
		}
	}

	g.cache.items[key] = cachedResponse{
		text:     text,
		expireAt: time.Now().Add(g.cache.ttl),
	}

	g.metrics.SetGauge(telemetry.MetricCacheSize, float64(len(g.cache.items)))
}

func cacheKey(prompt string) string {
	hash := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(hash[:])
}

// GetMetrics returns the metrics collector for this generator.
func (g *AIGenerator) GetMetrics() *telemetry.MetricsCollector {
	return g.metrics
}

// CheckProviderHealth probes every configured provider with a trivial prompt
// and reports which ones respond.
func (g *AIGenerator) CheckProviderHealth() map[string]bool {
	results := make(map[string]bool)
	healthPrompt := "Reply with the single word: ready"

	if err := g.Initialize(); err != nil {
		return results
	}

	g.mu.RLock()
	primary := g.provider
	fallbacks := g.fallbackProviders
	g.mu.RUnlock()

	probe := func(provider providers.LLMProvider) {
		name := provider.Name()
		if _, alreadyChecked := results[name]; alreadyChecked {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := provider.Complete(ctx, healthPrompt)
		cancel()

		results[name] = err == nil
		g.metrics.SetGauge(healthMetric(name), boolToFloat64(results[name]))
	}

	if primary != nil {
		probe(primary)
	}
	for _, fallback := range fallbacks {
		probe(fallback)
	}

	return results
}

// apiCallMetric maps a provider name to its API-call counter.
func apiCallMetric(name string) string {
	switch name {
	case providers.ProviderGoogle:
		return telemetry.MetricAPICallsGoogle
	case providers.ProviderAnthropic:
		return telemetry.MetricAPICallsAnthropic
	case providers.ProviderOpenAI:
		return telemetry.MetricAPICallsOpenAI
	case providers.ProviderXAI:
		return telemetry.MetricAPICallsXAI
	default:
		return "generator.api_calls.other"
	}
}

// healthMetric maps a provider name to its health gauge.
func healthMetric(name string) string {
	switch name {
	case providers.ProviderGoogle:
		return telemetry.MetricProviderHealthGoogle
	case providers.ProviderAnthropic:
		return telemetry.MetricProviderHealthAnthropic
	case providers.ProviderOpenAI:
		return telemetry.MetricProviderHealthOpenAI
	case providers.ProviderXAI:
		return telemetry.MetricProviderHealthXAI
	default:
		return "generator.health.other"
	}
}

// recordResponseTime records a provider's completion latency.
func (g *AIGenerator) recordResponseTime(name string, elapsed time.Duration) {
	switch name {
	case providers.ProviderGoogle:
		g.metrics.RecordTimer(telemetry.MetricResponseTimeGoogle, elapsed)
	case providers.ProviderAnthropic:
		g.metrics.RecordTimer(telemetry.MetricResponseTimeAnthropic, elapsed)
	case providers.ProviderOpenAI:
		g.metrics.RecordTimer(telemetry.MetricResponseTimeOpenAI, elapsed)
	case providers.ProviderXAI:
		g.metrics.RecordTimer(telemetry.MetricResponseTimeXAI, elapsed)
	}
}

// boolToFloat64 converts a boolean to a float64 (1.0 for true, 0.0 for false)
func boolToFloat64(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
