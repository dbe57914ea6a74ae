package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Rishu22889/ai-apply/internal/autopilot"
	"github.com/Rishu22889/ai-apply/internal/classify"
	"github.com/Rishu22889/ai-apply/internal/logger"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var prompt = promptui.Select{
	Label: "Proceed with the applications?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one classify-and-apply cycle and exit",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before applying")
}

// run is the manual one-shot cycle: classify, show the breakdown, confirm,
// apply.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting ai-apply", zap.String("version", version))

	// do not bother error since there is a valid parseable config
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
	orchestrator := autopilot.New(profiles, ledger, client, gateway, autopilot.Config{}, logger)

	classified, summary, err := orchestrator.ClassifyOnce(ctx, config.User)
	if err != nil {
		logger.Fatal("classification failed", zap.Error(err))
	}

	printSummary(logger, summary)

	if summary.WillApply == 0 {
		logger.Info("no eligible jobs found, exiting")
		return
	}

	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	if !autoApprove && !confirm(logger) {
		logger.Info("aborted by user")
		return
	}

	if err := orchestrator.Apply(ctx, config.User, classified, summary); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	printSummary(logger, summary)
}

func confirm(logger *zap.Logger) bool {
	_, answer, err := prompt.Run()
	if err != nil {
		logger.Warn("prompt failed, not applying", zap.Error(err))
		return false
	}
	return answer == PromptYes
}

func printSummary(logger *zap.Logger, summary *classify.Summary) {
	logger.Info("cycle summary",
		zap.Int("total_found", summary.TotalFound),
		zap.Int("will_apply", summary.WillApply),
		zap.Int("applied", summary.Applied),
		zap.Int("failed", summary.Failed),
		zap.Int("rejected_by_ai", summary.RejectedByAI),
		zap.Int("blocked", summary.Blocked),
		zap.Int("skipped_previously", summary.SkippedPrevious),
	)
}
