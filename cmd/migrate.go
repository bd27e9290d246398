package cmd

import (
	"fmt"
	"os"

	"library-services/internal/config"
	"library-services/internal/infrastructure/database"
	"library-services/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	migrateService string
	migrateDBName  string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration management",
	Long:  "Manage the SQL migrations of the ledger and catalog databases",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run pending migrations",
	Long:  "Execute all pending migrations for one service",
	Run:   runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long:  "Display the status of all migrations for one service",
	Run:   runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.PersistentFlags().StringVarP(&migrateService, "service", "s", ledgerService, "Service whose database to migrate: ledger or catalog")
	migrateCmd.PersistentFlags().StringVar(&migrateDBName, "db-name", "", "Database name (defaults to the service's own database)")
}

func migrationRunner() (*database.MigrationRunner, error) {
	if _, ok := defaultsFor[migrateService]; !ok {
		return nil, fmt.Errorf("unknown service %q: expected ledger or catalog", migrateService)
	}

	cfg := config.Get()
	serviceFlags{dbName: migrateDBName}.apply(cfg, migrateService)
	if cfg.Database.Driver != database.DriverPostgres {
		return nil, fmt.Errorf("SQL migrations are only used with the postgres driver, got %s", cfg.Database.Driver)
	}

	db, err := database.NewConnection(database.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.Username,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, err
	}
	source, err := migrationSource(cfg, migrateService)
	if err != nil {
		return nil, err
	}
	return database.NewMigrationRunner(db, source), nil
}

func runMigrateUp(cmd *cobra.Command, args []string) {
	runner, err := migrationRunner()
	if err != nil {
		logger.Error("Failed to prepare migrations: %v", err)
		os.Exit(1)
	}

	if err := runner.RunMigrations(); err != nil {
		logger.Error("Migration failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Migrations for %s completed successfully!\n", migrateService)
}

func runMigrateStatus(cmd *cobra.Command, args []string) {
	runner, err := migrationRunner()
	if err != nil {
		logger.Error("Failed to prepare migrations: %v", err)
		os.Exit(1)
	}

	migrations, err := runner.GetMigrationStatus()
	if err != nil {
		logger.Error("Failed to get migration status: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Migration Status (%s):\n", migrateService)
	fmt.Println("================")
	for _, migration := range migrations {
		status := "Pending"
		if migration.AppliedAt != nil {
			status = fmt.Sprintf("Applied at %s", migration.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("%s - %s [%s]\n", migration.ID, migration.Description, status)
	}
}
