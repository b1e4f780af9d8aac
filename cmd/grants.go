package cmd

import (
	"fmt"

	"github.com/imec-int/monument-plwd-sub001/db/migrations"
	"github.com/spf13/cobra"
)

var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Carecircle grant maintenance",
}

var grantsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Convert positional carecircle grants to namespaced grants",
	Long: `Rewrites every carecircle permission list into the namespaced form.
Rows that are already namespaced are left untouched, so the command can be re-run.`,
	RunE: runGrantsMigrate,
}

var grantsDryRun bool

func runGrantsMigrate(cmd *cobra.Command, _ []string) error {
	cfg, lg, err := setup()
	if err != nil {
		return err
	}
	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := migrations.RewriteGrants(cmd.Context(), db, grantsDryRun)
	if err != nil {
		return fmt.Errorf("rewrite grants: %w", err)
	}

	for _, c := range report.Changes {
		lg.Info("carecircle grants", "id", c.ID, "before", c.Before, "after", c.After, "dry_run", report.DryRun)
	}
	lg.Info("grant rewrite finished", "scanned", report.Scanned, "changed", len(report.Changes), "dry_run", report.DryRun)
	return nil
}

func init() {
	grantsMigrateCmd.Flags().BoolVar(&grantsDryRun, "dry-run", false, "report the changes without writing them")

	grantsCmd.AddCommand(grantsMigrateCmd)
	rootCmd.AddCommand(grantsCmd)
}
