package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/policyscan/policyscan/internal/config"
	"github.com/policyscan/policyscan/internal/store"
)

var claimsDBPath string

var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Manage the claims database",
}

var claimsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the claims database with sample data",
	RunE:  runClaimsInit,
}

var claimsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show claims database statistics",
	RunE:  runClaimsStats,
}

func init() {
	claimsCmd.PersistentFlags().StringVar(&claimsDBPath, "claims-db", "", "Claims database path (overrides config)")
	claimsCmd.AddCommand(claimsInitCmd)
	claimsCmd.AddCommand(claimsStatsCmd)
}

func openClaims() (*store.ClaimsDB, error) {
	path := claimsDBPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.Storage.ClaimsDB
	}
	return store.OpenClaimsDB(path)
}

func runClaimsInit(cmd *cobra.Command, args []string) error {
	db, err := openClaims()
	if err != nil {
		return fmt.Errorf("open claims db: %w", err)
	}
	defer db.Close()

	if err := db.LoadSampleData(); err != nil {
		return fmt.Errorf("load sample data: %w", err)
	}
	stats, err := db.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Claims database ready: %d patients, %d providers, %d claims, %d lines\n",
		stats.Patients, stats.Providers, stats.Claims, stats.ClaimLines)
	return nil
}

func runClaimsStats(cmd *cobra.Command, args []string) error {
	db, err := openClaims()
	if err != nil {
		return fmt.Errorf("open claims db: %w", err)
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("Patients:    %d\n", stats.Patients)
	fmt.Printf("Providers:   %d\n", stats.Providers)
	fmt.Printf("Claims:      %d\n", stats.Claims)
	fmt.Printf("Claim lines: %d\n", stats.ClaimLines)
	return nil
}
