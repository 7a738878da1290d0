package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/policyscan/policyscan/internal/agent"
	"github.com/policyscan/policyscan/internal/config"
	"github.com/policyscan/policyscan/internal/pipeline"
	"github.com/policyscan/policyscan/internal/provider"
	"github.com/policyscan/policyscan/internal/store"
	"github.com/policyscan/policyscan/internal/tools"
)

var (
	processOutput   string
	processName     string
	processNoSave   bool
	processRulesDB  string
	processClaimsDB string
	processWorkers  int
	processOffline  bool
)

var processCmd = &cobra.Command{
	Use:   "process <pdf>",
	Short: "Run the full pipeline on a policy PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "report.html", "Output HTML report path")
	processCmd.Flags().StringVar(&processName, "name", "", "Policy name (defaults to the PDF file name)")
	processCmd.Flags().BoolVar(&processNoSave, "no-save", false, "Skip saving rules to the repository")
	processCmd.Flags().StringVar(&processRulesDB, "rules-db", "", "Rule repository path (overrides config)")
	processCmd.Flags().StringVar(&processClaimsDB, "claims-db", "", "Claims database for query execution")
	processCmd.Flags().IntVar(&processWorkers, "workers", 1, "Concurrent workers for per-rule stages")
	processCmd.Flags().BoolVar(&processOffline, "offline", false, "Use the scripted provider (no API calls)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	printHeader("Processing " + pdfPath)
	if processOffline {
		fmt.Println(color.YellowString("Running offline (scripted provider, no API calls)"))
	}

	prov, err := resolveProvider(cfg, processOffline)
	if err != nil {
		return err
	}

	var claims *store.ClaimsDB
	if processClaimsDB != "" {
		claims, err = store.OpenClaimsDB(processClaimsDB)
		if err != nil {
			return fmt.Errorf("open claims db: %w", err)
		}
		defer claims.Close()
		if stats, err := claims.Stats(); err == nil {
			fmt.Printf("Claims DB: %d claims, %d lines\n", stats.Claims, stats.ClaimLines)
		}
	}

	loop := agent.NewLoop(agent.LoopOptions{
		Provider:    prov,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	ocrClient := tools.NewHTTPOCRClient(cfg.OCR.Endpoint, time.Duration(cfg.OCR.TimeoutSeconds)*time.Second)

	pipe := pipeline.New(loop,
		tools.NewPDFTool(),
		tools.NewOCRTool(ocrClient),
		tools.NewWebSearchTool(cfg.WebSearch.MaxResults),
		tools.NewReportTool(),
		cfg.SQL.MaxRetries,
		claims,
	)

	report, err := pipe.Run(cmd.Context(), pdfPath, processOutput, pipeline.Options{
		PolicyName: processName,
		Workers:    processWorkers,
	})
	if err != nil {
		return err
	}

	if !processNoSave && len(report.Rules) > 0 {
		rulesDB := processRulesDB
		if rulesDB == "" {
			rulesDB = cfg.Storage.RulesDB
		}
		repo, err := store.OpenRuleRepository(rulesDB)
		if err != nil {
			return fmt.Errorf("open rules db: %w", err)
		}
		defer repo.Close()
		if _, err := repo.SaveAll(report.PolicyName, report.Rules); err != nil {
			return fmt.Errorf("save rules: %w", err)
		}
		fmt.Printf("Saved %d rules under vendor %q\n", len(report.Rules), report.PolicyName)
	}

	printReportSummary(report.View())
	fmt.Println(color.GreenString("Report written to %s", processOutput))
	return nil
}

func resolveProvider(cfg *config.Config, offline bool) (provider.LLMProvider, error) {
	if offline {
		return provider.NewScriptedProvider(), nil
	}
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai api key not configured")
		}
		return provider.NewOpenAIProvider(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIAPIBase, cfg.LLM.OpenAIModel), nil
	case "anthropic":
		if cfg.LLM.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic api key not configured")
		}
		return provider.NewAnthropicProvider(cfg.LLM.AnthropicAPIKey, cfg.LLM.AnthropicModel), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
