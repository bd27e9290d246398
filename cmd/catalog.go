package cmd

import (
	"os"

	"library-services/internal/api/router"
	"library-services/internal/config"
	"library-services/internal/domain/book"
	"library-services/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	catalogFlags    serviceFlags
	consistencyMode string
	disablePrecheck bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Start the Catalog HTTP service",
	Long: `Start the Catalog service. It owns books and their available copies and
coordinates borrow and return with the User Ledger.

Consistency modes for a ledger that cannot be reached after stock changed:
  none        keep the stock change and answer 503 (default)
  compensate  undo the stock change and answer 503
  outbox      keep the stock change, queue the ledger update and answer 503`,
	Run: func(cmd *cobra.Command, args []string) {
		startCatalog()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().StringVarP(&catalogFlags.port, "port", "p", "", "Port to listen on (default 8080)")
	catalogCmd.Flags().StringVar(&catalogFlags.dbName, "db-name", "", "Database name (default library_books)")
	catalogCmd.Flags().StringVar(&consistencyMode, "consistency", "", "Override catalog.consistency_mode: none, compensate or outbox")
	catalogCmd.Flags().BoolVar(&disablePrecheck, "no-precheck", false, "Skip the ledger eligibility check before taking stock")
}

func startCatalog() {
	cfg := config.Get()
	catalogFlags.apply(cfg, catalogService)
	if consistencyMode != "" {
		cfg.Catalog.ConsistencyMode = consistencyMode
	}
	if disablePrecheck {
		cfg.Catalog.EligibilityPrecheck = false
	}

	backends, err := openBackends(cfg, catalogService, needsRedis(cfg), &book.Book{})
	if err != nil {
		logger.Error("Failed to prepare catalog storage: %v", err)
		os.Exit(1)
	}

	components, err := router.NewCatalogRouterWithQueue(cfg, backends)
	if err != nil {
		logger.Error("Failed to build catalog: %v", err)
		os.Exit(1)
	}
	logger.Info("Catalog consistency mode: %s, eligibility pre-check: %t", cfg.Catalog.ConsistencyMode, cfg.Catalog.EligibilityPrecheck)

	serve(cfg, router.CatalogServiceName, components.Router, components.Shutdown)
}
