package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/policyscan/policyscan/internal/config"
	"github.com/policyscan/policyscan/internal/policy"
	"github.com/policyscan/policyscan/internal/store"
)

var (
	rulesDBPath          string
	searchCPTCodes       []string
	searchICD10Codes     []string
	searchClassification string
	searchVendor         string
	searchText           string
	searchMinConfidence  float64
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Query the rule repository",
}

var rulesSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search stored rules",
	RunE:  runRulesSearch,
}

var rulesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show rule repository statistics",
	RunE:  runRulesStats,
}

func init() {
	rulesCmd.PersistentFlags().StringVar(&rulesDBPath, "rules-db", "", "Rule repository path (overrides config)")
	rulesSearchCmd.Flags().StringSliceVar(&searchCPTCodes, "cpt", nil, "Filter by CPT codes")
	rulesSearchCmd.Flags().StringSliceVar(&searchICD10Codes, "icd10", nil, "Filter by ICD-10 codes")
	rulesSearchCmd.Flags().StringVar(&searchClassification, "classification", "", "Filter by classification (mutual_exclusion, overutilization, service_not_covered)")
	rulesSearchCmd.Flags().StringVar(&searchVendor, "vendor", "", "Filter by vendor")
	rulesSearchCmd.Flags().StringVar(&searchText, "text", "", "Full-text query over name, description and source text")
	rulesSearchCmd.Flags().Float64Var(&searchMinConfidence, "min-confidence", 0, "Minimum confidence score")
	rulesCmd.AddCommand(rulesSearchCmd)
	rulesCmd.AddCommand(rulesStatsCmd)
}

func openRepository() (*store.RuleRepository, error) {
	path := rulesDBPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Storage.RulesDB
	}
	return store.OpenRuleRepository(path)
}

func runRulesSearch(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return fmt.Errorf("open rules db: %w", err)
	}
	defer repo.Close()

	filter := store.SearchFilter{
		CPTCodes:      searchCPTCodes,
		ICD10Codes:    searchICD10Codes,
		Vendor:        searchVendor,
		Text:          searchText,
		MinConfidence: searchMinConfidence,
	}
	if searchClassification != "" {
		filter.Classification = policy.ParseClassification(searchClassification)
	}

	rules, err := repo.Search(filter)
	if err != nil {
		return err
	}

	if len(rules) == 0 {
		fmt.Println("No rules matched.")
		return nil
	}
	fmt.Printf("Found %d rules:\n\n", len(rules))
	for _, sr := range rules {
		rule := sr.Rule.Rule
		fmt.Printf("%s  %s\n", color.CyanString(rule.ID), rule.Name)
		fmt.Printf("    classification: %s  confidence: %.0f%%\n", rule.Classification, sr.Confidence)
		if len(rule.CPTCodes) > 0 {
			fmt.Printf("    cpt: %v\n", rule.CPTCodes)
		}
		if sr.Rule.SQL != "" {
			fmt.Printf("    sql: %s\n", truncate(sr.Rule.SQL, 100))
		}
		fmt.Println()
	}
	return nil
}

func runRulesStats(cmd *cobra.Command, args []string) error {
	repo, err := openRepository()
	if err != nil {
		return fmt.Errorf("open rules db: %w", err)
	}
	defer repo.Close()

	stats, err := repo.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Total rules: %d\n", stats.TotalRules)
	fmt.Printf("Average confidence: %.1f%%\n", stats.AverageConfidence)
	if len(stats.ByClassification) > 0 {
		fmt.Println("By classification:")
		for k, v := range stats.ByClassification {
			fmt.Printf("  %-22s %d\n", k, v)
		}
	}
	if len(stats.ByVendor) > 0 {
		fmt.Println("By vendor:")
		for k, v := range stats.ByVendor {
			fmt.Printf("  %-22s %d\n", k, v)
		}
	}
	return nil
}
