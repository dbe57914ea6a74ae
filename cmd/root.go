package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Rishu22889/ai-apply/internal/autopilot"
	"github.com/Rishu22889/ai-apply/internal/history"
	"github.com/Rishu22889/ai-apply/internal/portal"
	"github.com/Rishu22889/ai-apply/internal/profile"
	"github.com/Rishu22889/ai-apply/internal/ranking"
	"github.com/Rishu22889/ai-apply/internal/ranking/gemini"
	"github.com/Rishu22889/ai-apply/internal/secrets"
)

const (
	app = "ai-apply"
)

type Config struct {
	User        string         `mapstructure:"user"`
	PortalURL   string         `mapstructure:"portal-url"`
	TokenFile   string         `mapstructure:"token-file"`
	DatabaseDSN string         `mapstructure:"database-dsn"`
	Autopilot   *RunConfig     `mapstructure:"autopilot"`
	AI          *AIConfig      `mapstructure:"ai"`
	Profile     *ProfileConfig `mapstructure:"profile"`
}

type RunConfig struct {
	SettleDelaySeconds int `mapstructure:"settle-delay-seconds"`
	CooldownSeconds    int `mapstructure:"cooldown-seconds"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
	MaxLogLength int           `mapstructure:"max-log-length"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type ProfileConfig struct {
	// File seeds the profile store from a JSON document on startup.
	File string `mapstructure:"file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "ai-apply is an autopilot that classifies job listings and applies to the eligible ones",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("token-file", "PORTAL_TOKEN_FILE"); err != nil {
		log.Fatalf("binding PORTAL_TOKEN_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("database-dsn", "AI_APPLY_DB_DSN"); err != nil {
		log.Fatalf("binding AI_APPLY_DB_DSN environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is ai-apply.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env file is fine; explicit environment wins anyway.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// A missing default config is fine; a present but broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.User == "" {
		config.User = "default"
	}
	if config.Autopilot == nil {
		config.Autopilot = &RunConfig{SettleDelaySeconds: 10, CooldownSeconds: 60}
	}
	return config, nil
}

func resolveToken(config *Config) (string, error) {
	return secrets.Load(secrets.Source{
		Name: "portal token",
		File: config.TokenFile,
		Env:  "PORTAL_TOKEN",
	})
}

// newPortalClient builds the portal client from the configuration. The token
// is optional for local portals.
func newPortalClient(config *Config, logger *zap.Logger) *portal.Client {
	token, err := resolveToken(config)
	if err != nil {
		logger.Debug("portal token is not configured, proceeding unauthenticated")
	}

	client := portal.New(logger, token)
	if config.PortalURL != "" {
		client.APIURL = strings.TrimRight(config.PortalURL, "/")
	}
	return client
}

// newGateway builds the ranking gateway from the ai section.
func newGateway(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ranking.Gateway, error) {
	if cfg == nil {
		cfg = &AIConfig{}
	}
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		cfg.Gemini = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewMatcher(generator, cfg.maxLogLength(), logger), nil
}

func (c *AIConfig) maxLogLength() int {
	if c == nil || c.MaxLogLength <= 0 {
		return 300
	}
	return c.MaxLogLength
}

// newStores selects the persistence backend: postgres when a DSN is
// configured, in-memory otherwise.
func newStores(ctx context.Context, config *Config, logger *zap.Logger) (profile.Store, history.Ledger, func(), error) {
	if config.DatabaseDSN == "" {
		logger.Info("no database configured, using in-memory stores")
		return profile.NewMemoryStore(), history.NewMemoryLedger(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, config.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return profile.NewPostgresStore(pool, logger),
		history.NewPostgresLedger(pool, logger),
		pool.Close, nil
}

func autopilotConfig(config *Config) autopilot.Config {
	return autopilot.Config{
		SettleDelay: time.Duration(config.Autopilot.SettleDelaySeconds) * time.Second,
		Cooldown:    time.Duration(config.Autopilot.CooldownSeconds) * time.Second,
	}
}

// seedProfile loads a profile document from the configured JSON file into the
// store, if one is set and no profile exists yet.
func seedProfile(ctx context.Context, config *Config, store profile.Store, logger *zap.Logger) error {
	if config.Profile == nil || config.Profile.File == "" {
		return nil
	}
	if _, err := store.Get(ctx, config.User); err == nil {
		return nil
	}

	data, err := os.ReadFile(config.Profile.File)
	if err != nil {
		return fmt.Errorf("reading profile file: %w", err)
	}

	var p profile.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing profile file: %w", err)
	}
	if err := store.Save(ctx, config.User, &p); err != nil {
		return err
	}

	logger.Info("profile seeded from file",
		zap.String("file", config.Profile.File),
		zap.String("user", config.User),
	)
	return nil
}
