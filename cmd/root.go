package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "applyflow"
)

type Config struct {
	DatabasePath string            `mapstructure:"database-path"`
	UserAgent    string            `mapstructure:"user-agent"`
	Worker       *WorkerConfig     `mapstructure:"worker"`
	AI           *AIConfig         `mapstructure:"ai"`
	SMTP         *SMTPConfig       `mapstructure:"smtp"`
	Dispatch     *DispatchConfig   `mapstructure:"dispatch"`
	Ledger       *LedgerConfig     `mapstructure:"ledger"`
	Queue        *QueueConfig      `mapstructure:"queue"`
	Catalog      *CatalogConfig    `mapstructure:"catalog"`
	Alerting     *AlertConfig      `mapstructure:"alerting"`
	Extraction   *ExtractionConfig `mapstructure:"extraction"`
	Reaper       *ReaperConfig     `mapstructure:"reaper"`
}

type WorkerConfig struct {
	Count        int           `mapstructure:"count"`
	PollInterval time.Duration `mapstructure:"poll-interval"`
	JobBudget    time.Duration `mapstructure:"job-budget"`
}

type AIConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Provider          string        `mapstructure:"provider"`
	Gemini            *GeminiConfig `mapstructure:"gemini"`
	ExtractionTimeout time.Duration `mapstructure:"extraction-timeout"`
	GenerationTimeout time.Duration `mapstructure:"generation-timeout"`
	Scoring           bool          `mapstructure:"scoring"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type SMTPConfig struct {
	Host              string  `mapstructure:"host"`
	Port              int     `mapstructure:"port"`
	Username          string  `mapstructure:"username"`
	PasswordFile      string  `mapstructure:"password-file"`
	From              string  `mapstructure:"from"`
	MessagesPerSecond float64 `mapstructure:"messages-per-second"`
}

type DispatchConfig struct {
	BatchSize   int           `mapstructure:"batch-size"`
	BatchDelay  time.Duration `mapstructure:"batch-delay"`
	SendTimeout time.Duration `mapstructure:"send-timeout"`
}

type LedgerConfig struct {
	MaxAttempts int           `mapstructure:"max-attempts"`
	BaseDelay   time.Duration `mapstructure:"base-delay"`
	MaxDelay    time.Duration `mapstructure:"max-delay"`
}

type QueueConfig struct {
	MaxAttempts int           `mapstructure:"max-attempts"`
	RetryBase   time.Duration `mapstructure:"retry-base"`
	RetryCap    time.Duration `mapstructure:"retry-cap"`
}

type CatalogConfig struct {
	URL       string `mapstructure:"url"`
	TokenFile string `mapstructure:"token-file"`
}

type AlertConfig struct {
	OperatorEmail string `mapstructure:"operator-email"`
	// NotifyRequesterByEmail treats requester identifiers that look like
	// email addresses as deliverable. Front ends with their own channel
	// (chat bots) keep this off.
	NotifyRequesterByEmail bool `mapstructure:"notify-requester-by-email"`
}

type ExtractionConfig struct {
	DisallowedNameTokens []string      `mapstructure:"disallowed-name-tokens"`
	PriorCacheTTL        time.Duration `mapstructure:"prior-cache-ttl"`
}

type ReaperConfig struct {
	Retention time.Duration `mapstructure:"retention"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "applyflow turns uploaded CVs into dispatched job applications",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("database-path", "APPLYFLOW_DB"); err != nil {
		log.Fatalf("binding APPLYFLOW_DB environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is applyflow.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
