// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for DigestHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, tick_token, etc.
//   - Environment variables: DIGESTHUB_MONGO_URI, DIGESTHUB_TICK_TOKEN, etc.
//   - Command-line flags: --mongo_uri, --tick_token, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "digest_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL of this deployment (used for OAuth callbacks)"},
	{Name: "state_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "OAuth state cookie signing key (must be strong in production)"},
	{Name: "tick_token", Default: "", Desc: "Bearer token required on POST /jobs/tick (empty disables the endpoint)"},

	// OpenAI summarization
	{Name: "openai_api_key", Default: "", Desc: "OpenAI API key for summarization"},
	{Name: "openai_org_id", Default: "", Desc: "OpenAI organization ID (optional)"},
	{Name: "openai_model", Default: "", Desc: "OpenAI model name (blank uses the summarizer default)"},

	// GitHub App
	{Name: "github_app_id", Default: "", Desc: "GitHub App ID"},
	{Name: "github_private_key_path", Default: "", Desc: "Path to the GitHub App PEM private key"},
	{Name: "github_webhook_secret", Default: "", Desc: "GitHub webhook signing secret"},
	{Name: "github_client_id", Default: "", Desc: "GitHub OAuth client ID for the connect flow"},
	{Name: "github_client_secret", Default: "", Desc: "GitHub OAuth client secret"},

	// Digest pipeline concurrency
	{Name: "digest_concurrency", Default: 8, Desc: "Max team digest runs in flight per tick"},
	{Name: "member_concurrency", Default: 4, Desc: "Max members summarized in parallel per team"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, DIGESTHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "DIGESTHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		BaseURL:   appValues.String("base_url"),
		StateKey:  appValues.String("state_key"),
		TickToken: appValues.String("tick_token"),

		OpenAIAPIKey: appValues.String("openai_api_key"),
		OpenAIOrgID:  appValues.String("openai_org_id"),
		OpenAIModel:  appValues.String("openai_model"),

		GitHubAppID:          appValues.String("github_app_id"),
		GitHubPrivateKeyPath: appValues.String("github_private_key_path"),
		GitHubWebhookSecret:  appValues.String("github_webhook_secret"),
		GitHubClientID:       appValues.String("github_client_id"),
		GitHubClientSecret:   appValues.String("github_client_secret"),

		DigestConcurrency: appValues.Int("digest_concurrency"),
		MemberConcurrency: appValues.Int("member_concurrency"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// DigestHub validates the MongoDB URI format and the GitHub App key
// file to catch configuration errors early, before attempting to
// connect to anything.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	// A GitHub App ID without a key file (or vice versa) cannot mint
	// installation tokens; fail now rather than on the first delivery.
	if (appCfg.GitHubAppID == "") != (appCfg.GitHubPrivateKeyPath == "") {
		return fmt.Errorf("github_app_id and github_private_key_path must be set together")
	}
	if appCfg.GitHubPrivateKeyPath != "" {
		if _, err := os.Stat(appCfg.GitHubPrivateKeyPath); err != nil {
			return fmt.Errorf("github_private_key_path: %w", err)
		}
	}

	if appCfg.OpenAIAPIKey == "" {
		logger.Warn("openai_api_key is not set; summarization will fail until it is configured")
	}
	if appCfg.TickToken == "" {
		logger.Warn("tick_token is not set; POST /jobs/tick will reject every request")
	}

	if appCfg.DigestConcurrency < 1 {
		return fmt.Errorf("digest_concurrency must be at least 1, got %d", appCfg.DigestConcurrency)
	}
	if appCfg.MemberConcurrency < 1 {
		return fmt.Errorf("member_concurrency must be at least 1, got %d", appCfg.MemberConcurrency)
	}

	return nil
}
