package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Rishu22889/ai-apply/internal/api"
	"github.com/Rishu22889/ai-apply/internal/autopilot"
	"github.com/Rishu22889/ai-apply/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the autopilot HTTP API",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", ":8080", "address to listen on")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func serve(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting ai-apply api", zap.String("version", version))

	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	profiles, ledger, cleanup, err := newStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("setting up stores", zap.Error(err))
	}
	defer cleanup()

	if err := seedProfile(ctx, config, profiles, logger); err != nil {
		logger.Fatal("seeding the profile", zap.Error(err))
	}

	gateway, err := newGateway(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("setting up the ranking gateway", zap.Error(err))
	}

	client := newPortalClient(config, logger)
	orchestrator := autopilot.New(profiles, ledger, client, gateway, autopilotConfig(config), logger)
	defer orchestrator.Close()

	server := api.NewServer(orchestrator, profiles, ledger, config.User, logger)
	if err := server.Run(ctx, viper.GetString("listen")); err != nil && err != http.ErrServerClosed {
		logger.Fatal("api server failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
