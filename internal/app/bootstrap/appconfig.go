// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level and format, CORS, and request body limits.
// AppConfig is where everything specific to DigestHub lives: database
// connection strings, external service credentials, and the knobs for
// the digest pipeline itself.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Base URL of this deployment, used to build OAuth callback URLs
	BaseURL string // e.g., "https://digesthub.example.com"

	// StateKey signs the short-lived OAuth state cookie (must be strong in production)
	StateKey string

	// TickToken guards POST /jobs/tick; the external timer presents it
	// as a bearer token.
	TickToken string

	// OpenAI configuration for summarization
	OpenAIAPIKey string // API key for the chat completions endpoint
	OpenAIOrgID  string // Optional organization ID
	OpenAIModel  string // Model name (blank means the summarizer default)

	// GitHub App configuration for webhook ingestion and the connect flow
	GitHubAppID          string // GitHub App ID (numeric, as a string)
	GitHubPrivateKeyPath string // Path to the App's PEM private key file
	GitHubWebhookSecret  string // Webhook signing secret
	GitHubClientID       string // OAuth client ID for the user connect flow
	GitHubClientSecret   string // OAuth client secret

	// Digest pipeline concurrency
	DigestConcurrency int // Max team digest runs in flight per tick
	MemberConcurrency int // Max members summarized in parallel per team
}
