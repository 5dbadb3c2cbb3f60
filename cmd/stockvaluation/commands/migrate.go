package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockvaluation/backend/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database schema",
	Long: `Apply every pending migration embedded in the binary.

Example:
  go run ./cmd/stockvaluation migrate
  go run ./cmd/stockvaluation migrate --status`,
	RunE: runMigrate,
}

var migrateStatusOnly bool

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "print the current version without migrating")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()

	if migrateStatusOnly {
		version, dirty, err := db.MigrationVersion()
		if err != nil {
			return fmt.Errorf("❌ Failed to read schema version: %w", err)
		}
		fmt.Printf("Schema version: %d (dirty: %v)\n", version, dirty)
		return nil
	}

	version, err := db.MigrateUp(ctx)
	if err != nil {
		return fmt.Errorf("❌ Migration failed: %w", err)
	}

	fmt.Printf("✅ Schema at version %d\n", version)
	return nil
}
