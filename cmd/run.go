package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/applyflow/applyflow/internal/ai"
	"github.com/applyflow/applyflow/internal/ai/gemini"
	"github.com/applyflow/applyflow/internal/application"
	"github.com/applyflow/applyflow/internal/catalog"
	"github.com/applyflow/applyflow/internal/dispatch"
	"github.com/applyflow/applyflow/internal/extraction"
	"github.com/applyflow/applyflow/internal/ledger"
	"github.com/applyflow/applyflow/internal/letter"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/metrics"
	"github.com/applyflow/applyflow/internal/pipeline"
	"github.com/applyflow/applyflow/internal/queue"
	"github.com/applyflow/applyflow/internal/secrets"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const metricsInterval = time.Minute

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the applyflow worker pool",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntP("workers", "w", 0, "number of concurrent workers. Overrides the config value.")
	runCmd.Flags().String("database", "", "path to the sqlite database file")

	viper.BindPFlag("worker.count", runCmd.Flags().Lookup("workers"))
	viper.BindPFlag("database-path", runCmd.Flags().Lookup("database"))
}

// run is the main command for the cli. It wires every pipeline collaborator
// and consumes fulfillment jobs until interrupted.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the applyflow worker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.DatabasePath == "" {
		logger.Fatal("a database path is required",
			zap.String("hint", "set APPLYFLOW_DB environment variable or the 'database-path' key in the configuration file"),
		)
	}

	q, err := queue.Open(config.DatabasePath, queueConfig(config))
	if err != nil {
		logger.Fatal("opening the job queue", zap.Error(err))
	}
	defer q.Close()

	store, err := ledger.NewStoreFromDB(q.DB())
	if err != nil {
		logger.Fatal("opening the application store", zap.Error(err))
	}

	completer, err := newCompleter(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating an AI client", zap.Error(err))
	}

	courier, err := newCourier(config, logger)
	if err != nil {
		logger.Fatal("creating the smtp courier", zap.Error(err))
	}

	deps, err := buildPipelineDeps(config, store, completer, courier, logger)
	if err != nil {
		logger.Fatal("assembling the pipeline", zap.Error(err))
	}

	pipe := pipeline.New(*deps)

	handler := func(ctx context.Context, job *queue.Job) error {
		req, err := application.Decode(job.Payload)
		if err != nil {
			// A payload that can not even be decoded will never succeed.
			return &queue.NonRetryable{Err: err}
		}

		progress := func(ctx context.Context, percent int) {
			if err := q.SetProgress(ctx, job.ID, percent); err != nil {
				logger.Warn("recording job progress", zap.String("job", job.ID), zap.Error(err))
			}
		}

		err = pipe.Run(ctx, req, progress)

		var intake *pipeline.IntakeError
		var validation *pipeline.ValidationError
		if errors.As(err, &intake) || errors.As(err, &validation) {
			// Rejections are final. Retrying can not grow a valid name
			// out of the same document.
			return &queue.NonRetryable{Err: err}
		}

		return err
	}

	var worker WorkerConfig
	if config.Worker != nil {
		worker = *config.Worker
	}

	pool := queue.NewPool(q, handler, worker.Count, worker.PollInterval, worker.JobBudget, logger)

	go reportMetrics(ctx, deps.Metrics, logger)

	logger.Info("worker pool started", zap.String("database", config.DatabasePath))

	if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker pool stopped", zap.Error(err))
	}

	// Let scheduled document deletions that are already due finish.
	deps.Reaper.Wait()

	snap := deps.Metrics.Snapshot()
	logger.Info("shutting down",
		zap.Int64("runs_started", snap.RunsStarted),
		zap.Int64("runs_succeeded", snap.RunsSucceeded),
		zap.Int64("runs_failed", snap.RunsFailed),
		zap.Int64("runs_rejected", snap.RunsRejected),
		zap.Int64("dispatch_sent", snap.DispatchSent),
		zap.Int64("dispatch_failed", snap.DispatchFailed),
	)
}

func buildPipelineDeps(
	config *Config,
	store *ledger.Store,
	completer ai.Completer,
	courier dispatch.Courier,
	logger *zap.Logger,
) (*pipeline.Deps, error) {
	var aiCfg AIConfig
	if config.AI != nil {
		aiCfg = *config.AI
	}

	var extractionCfg ExtractionConfig
	if config.Extraction != nil {
		extractionCfg = *config.Extraction
	}

	validator := extraction.NewValidator(extractionCfg.DisallowedNameTokens)
	prior := extraction.NewMemoryPriorCache()

	strategies := []extraction.Strategy{extraction.NewPrior(prior)}
	if completer != nil {
		strategies = append(strategies, extraction.NewAI(completer, aiCfg.ExtractionTimeout))
	}
	strategies = append(strategies, extraction.NewHeuristic(validator))

	cascade := extraction.NewCascade(strategies, validator, logger)

	synthesizer := letter.NewSynthesizer(completer, aiCfg.GenerationTimeout, logger)

	var scorer ledger.Scorer
	if completer != nil && aiCfg.Scoring {
		scorer = ledger.NewAIScorer(completer, logger)
	}

	backoff := ledger.DefaultBackoff
	if config.Ledger != nil {
		backoff = ledger.BackoffPolicy{
			MaxAttempts: config.Ledger.MaxAttempts,
			BaseDelay:   config.Ledger.BaseDelay,
			MaxDelay:    config.Ledger.MaxDelay,
			Jitter:      true,
		}
	}

	led := ledger.New(store, scorer, backoff, logger)

	var dispatchCfg DispatchConfig
	if config.Dispatch != nil {
		dispatchCfg = *config.Dispatch
	}
	batcher := dispatch.NewBatcher(courier, dispatchCfg.BatchSize, dispatchCfg.BatchDelay, dispatchCfg.SendTimeout, logger)

	var alerting AlertConfig
	if config.Alerting != nil {
		alerting = *config.Alerting
	}
	if alerting.OperatorEmail == "" {
		return nil, errors.New("an operator email is required under alerting.operator-email")
	}

	notifier := &pipeline.CourierNotifier{
		Courier:         courier,
		OperatorAddress: alerting.OperatorEmail,
	}
	if alerting.NotifyRequesterByEmail {
		notifier.RequesterAddress = requesterEmail
	}

	var retention time.Duration
	if config.Reaper != nil {
		retention = config.Reaper.Retention
	}
	reaper := pipeline.NewReaper(retention, logger)

	var cat *catalog.Client
	if config.Catalog != nil && config.Catalog.URL != "" {
		token, err := secrets.Load(secrets.Source{
			Name: "catalog token",
			File: config.Catalog.TokenFile,
			Env:  "APPLYFLOW_CATALOG_TOKEN",
		})
		if err != nil {
			return nil, fmt.Errorf("loading catalog token: %w", err)
		}

		cat = catalog.New(config.Catalog.URL, token, logger)
		if config.UserAgent != "" {
			cat.UserAgent = config.UserAgent
		}
	}

	return &pipeline.Deps{
		Text:       pipeline.PlainTextSource{},
		Cascade:    cascade,
		Prior:      prior,
		PriorTTL:   extractionCfg.PriorCacheTTL,
		Synthesize: synthesizer,
		Ledger:     led,
		Batcher:    batcher,
		Notifier:   notifier,
		Reaper:     reaper,
		Catalog:    cat,
		Metrics:    metrics.NewRegistry(),
		Logger:     logger,
	}, nil
}

// newCompleter creates the configured AI client, or nil when AI assistance is
// disabled. The pipeline degrades to heuristics and templates without it.
func newCompleter(ctx context.Context, config *Config, logger *zap.Logger) (ai.Completer, error) {
	if config.AI == nil || !config.AI.Enabled {
		logger.Info("AI assistance is disabled, using heuristics and templates only")
		return nil, nil
	}

	provider := config.AI.Provider
	if provider == "" {
		provider = "gemini"
	}

	if provider != "gemini" {
		return nil, fmt.Errorf("unsupported AI provider: %q", provider)
	}

	var gem GeminiConfig
	if config.AI.Gemini != nil {
		gem = *config.AI.Gemini
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: gem.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("loading gemini api key: %w", err)
	}

	client, err := gemini.New(ctx, apiKey, gem.Model, gem.MaxRetries, gem.MaxLogLength, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("gemini client ready", zap.String("model", client.Model()))

	return client, nil
}

func newCourier(config *Config, logger *zap.Logger) (dispatch.Courier, error) {
	if config.SMTP == nil || config.SMTP.Host == "" {
		return nil, errors.New("an smtp host is required under smtp.host")
	}

	password, err := secrets.Load(secrets.Source{
		Name: "smtp password",
		File: config.SMTP.PasswordFile,
		Env:  "APPLYFLOW_SMTP_PASSWORD",
	})
	if err != nil {
		return nil, fmt.Errorf("loading smtp password: %w", err)
	}

	from := config.SMTP.From
	if from == "" {
		from = config.SMTP.Username
	}

	courier, err := dispatch.NewSMTPCourier(dispatch.SMTPConfig{
		Host:              config.SMTP.Host,
		Port:              config.SMTP.Port,
		Username:          config.SMTP.Username,
		Password:          password,
		From:              from,
		MessagesPerSecond: config.SMTP.MessagesPerSecond,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("smtp courier ready", zap.String("host", config.SMTP.Host), zap.String("from", from))

	return courier, nil
}

// requesterEmail treats requester identifiers that look like an email address
// as deliverable. Anything else has no reachable mailbox here.
func requesterEmail(requester string) string {
	if strings.Count(requester, "@") == 1 && !strings.ContainsAny(requester, " \t\n") {
		return requester
	}
	return ""
}

func queueConfig(config *Config) queue.Config {
	cfg := queue.DefaultConfig
	if config.Queue == nil {
		return cfg
	}
	if config.Queue.MaxAttempts > 0 {
		cfg.MaxAttempts = config.Queue.MaxAttempts
	}
	if config.Queue.RetryBase > 0 {
		cfg.RetryBase = config.Queue.RetryBase
	}
	if config.Queue.RetryCap > 0 {
		cfg.RetryCap = config.Queue.RetryCap
	}
	return cfg
}

func reportMetrics(ctx context.Context, reg *metrics.Registry, logger *zap.Logger) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := reg.Snapshot()
			if snap.RunsStarted == 0 {
				continue
			}
			logger.Info("pipeline counters",
				zap.Int64("runs_started", snap.RunsStarted),
				zap.Int64("runs_succeeded", snap.RunsSucceeded),
				zap.Int64("runs_failed", snap.RunsFailed),
				zap.Int64("runs_rejected", snap.RunsRejected),
				zap.Int64("dispatch_sent", snap.DispatchSent),
				zap.Int64("dispatch_failed", snap.DispatchFailed),
			)
		}
	}
}
