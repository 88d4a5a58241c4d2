package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/soul-spirits/internal/captcha"
	"github.com/jonathan/soul-spirits/internal/config"
	"github.com/jonathan/soul-spirits/internal/llm"
	"github.com/jonathan/soul-spirits/internal/logging"
	"github.com/jonathan/soul-spirits/internal/metrics"
	"github.com/jonathan/soul-spirits/internal/server"
	"github.com/jonathan/soul-spirits/internal/server/ratelimit"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the session API: profile submission with
verification, cocktail generation (plain or streamed over SSE), redo with critique,
inventory management and, when DATABASE_URL is set, generation history.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT or 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gens, err := newGenerators(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = gens.Close() }()

	captchaCfg, err := config.NewCaptchaConfig()
	if err != nil {
		return fmt.Errorf("failed to create captcha config: %w", err)
	}
	if captchaCfg.Ephemeral {
		logger.Warn("CAPTCHA_SECRET not set; using a random secret, challenges will not survive a restart")
	}
	issuer, err := captcha.NewIssuer(captchaCfg.Secret, captcha.WithTTL(time.Duration(captchaCfg.TTLMinutes)*time.Minute))
	if err != nil {
		return err
	}

	store, closeStore, err := openInventory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := server.Deps{
		Recipes:   gens.recipes,
		Images:    gens.images,
		Captcha:   issuer,
		Inventory: store,
		Metrics:   metrics.New(),
		Logger:    logger,
	}
	history, err := openHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		deps.History = history
	}

	srv, err := server.New(server.Config{
		Port:                     cfg.Port,
		AllowedOrigins:           cfg.AllowedOrigins,
		GenerationTimeout:        cfg.GenerationTimeoutDuration(),
		SessionIdleTimeout:       cfg.SessionIdleTimeoutDuration(),
		MaxConcurrentGenerations: cfg.MaxConcurrentGenerations,
		RateLimit:                ratelimit.LoadConfig(cfg.RequestsPerMinute, cfg.GenerationsPerMinute),
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("serving",
		zap.Int("port", cfg.Port),
		zap.String("text_model", gens.client.GetModel(llm.TierStandard)),
		zap.String("image_model", gens.client.GetModel(llm.TierImage)),
		zap.Bool("history", history != nil))
	return srv.Start(ctx)
}
