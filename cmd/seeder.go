package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imec-int/monument-plwd-sub001/db/seed"
)

var (
	clearData bool
	seedFile  string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with users, PLWDs and carecircles from a YAML fixtures file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, lg, err := setup()
		if err != nil {
			return err
		}

		fixtures, err := seed.Load(seedFile)
		if err != nil {
			return err
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer db.Close()
		gdb, err := openGorm(db)
		if err != nil {
			return err
		}

		res, err := seed.Apply(cmd.Context(), gdb, fixtures, clearData)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		lg.Info("database seeded",
			"file", seedFile,
			"users_created", res.Users,
			"plwd_created", res.PLWD,
			"carecircles_written", res.Carecircles)
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "db/seed/fixtures.yml", "fixtures file")
}
