// internal/app/bootstrap/routes.go
package bootstrap

import (
	"fmt"
	"net/http"
	"os"

	authgithubfeature "github.com/dalemusser/digesthub/internal/app/features/authgithub"
	healthfeature "github.com/dalemusser/digesthub/internal/app/features/health"
	integrationsfeature "github.com/dalemusser/digesthub/internal/app/features/integrations"
	jobsfeature "github.com/dalemusser/digesthub/internal/app/features/jobs"
	settingsfeature "github.com/dalemusser/digesthub/internal/app/features/settings"
	webhooksfeature "github.com/dalemusser/digesthub/internal/app/features/webhooks"
	"github.com/dalemusser/digesthub/internal/app/store/activity"
	"github.com/dalemusser/digesthub/internal/app/store/digests"
	"github.com/dalemusser/digesthub/internal/app/store/integrations"
	"github.com/dalemusser/digesthub/internal/app/store/memberships"
	"github.com/dalemusser/digesthub/internal/app/store/notificationsettings"
	"github.com/dalemusser/digesthub/internal/app/system/deliver"
	"github.com/dalemusser/digesthub/internal/app/system/digest"
	"github.com/dalemusser/digesthub/internal/app/system/githubapi"
	"github.com/dalemusser/digesthub/internal/app/system/metrics"
	"github.com/dalemusser/digesthub/internal/app/system/summarize"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. DigestHub wires the digest
// pipeline (selector, scheduler, per-team runner) and mounts the API
// surface: health, metrics, the tick trigger, webhook ingestion, the
// settings API, integration admin, and the GitHub connect flow.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.DigestHubMongoDatabase

	// Summarization client. The API key may be empty in dev; calls fail
	// cleanly and the pipeline degrades per member.
	var sumOpts []summarize.Option
	if appCfg.OpenAIModel != "" {
		sumOpts = append(sumOpts, summarize.WithModel(appCfg.OpenAIModel))
	}
	summarizer := summarize.New(appCfg.OpenAIAPIKey, appCfg.OpenAIOrgID, sumOpts...)

	integrations := integrationstore.New(db)
	deliverer := deliver.New(integrations)

	// GitHub App API client, used to enrich push deliveries. Optional;
	// ValidateConfig guarantees app ID and key path come together.
	var gh *githubapi.Client
	if appCfg.GitHubAppID != "" {
		pemKey, err := os.ReadFile(appCfg.GitHubPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read GitHub App private key: %w", err)
		}
		auth, err := githubapi.NewAppAuth(appCfg.GitHubAppID, pemKey)
		if err != nil {
			return nil, fmt.Errorf("parse GitHub App private key: %w", err)
		}
		gh = githubapi.New(auth, integrations)
	}

	// The digest pipeline: settings selector feeding per-team runs.
	settings := settingstore.New(db)
	members := membershipstore.New(db)
	selector := digest.NewSelector(settings, logger)
	pipeline := digest.NewPipeline(
		members,
		activity.New(db),
		summarizer,
		deliverer,
		digeststore.New(db),
		appCfg.MemberConcurrency,
		logger,
	)
	scheduler := digest.NewScheduler(selector, members, pipeline, appCfg.DigestConcurrency, logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.DigestHubMongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Prometheus metrics
	r.Handle("/metrics", metrics.Handler())

	// Tick trigger for the external timer
	jobsHandler := jobsfeature.NewHandler(scheduler, appCfg.TickToken, logger)
	r.Mount("/jobs", jobsfeature.Routes(jobsHandler))

	// GitHub webhook ingestion
	webhooksHandler := webhooksfeature.NewHandler(db, summarizer, gh, appCfg.GitHubWebhookSecret, logger)
	r.Mount("/webhooks", webhooksfeature.Routes(webhooksHandler))

	// Settings API
	settingsHandler := settingsfeature.NewHandler(db, logger)
	r.Mount("/api", settingsfeature.Routes(settingsHandler))

	// Integration admin (Slack install and link)
	integrationsHandler := integrationsfeature.NewHandler(db, deliverer, logger)
	r.Mount("/api/integrations", integrationsfeature.Routes(integrationsHandler))

	// GitHub connect flow
	authHandler := authgithubfeature.NewHandler(db,
		appCfg.GitHubClientID, appCfg.GitHubClientSecret,
		appCfg.BaseURL, []byte(appCfg.StateKey), logger)
	r.Mount("/auth/github", authgithubfeature.Routes(authHandler))

	return r, nil
}
