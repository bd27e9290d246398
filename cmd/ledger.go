package cmd

import (
	"os"

	"library-services/internal/api/router"
	"library-services/internal/config"
	"library-services/internal/domain/user"
	"library-services/pkg/logger"

	"github.com/spf13/cobra"
)

var ledgerFlags serviceFlags

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Start the User Ledger HTTP service",
	Long: `Start the User Ledger service. It owns library members, their membership
status and the number of books each member currently holds.

The catalog calls it to check eligibility and to move borrowed counts:
  GET /api/users/{id}/can-borrow
  PUT /api/users/{id}/borrow
  PUT /api/users/{id}/return`,
	Run: func(cmd *cobra.Command, args []string) {
		startLedger()
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.Flags().StringVarP(&ledgerFlags.port, "port", "p", "", "Port to listen on (default 8081)")
	ledgerCmd.Flags().StringVar(&ledgerFlags.dbName, "db-name", "", "Database name (default library_users)")
}

func startLedger() {
	cfg := config.Get()
	ledgerFlags.apply(cfg, ledgerService)

	backends, err := openBackends(cfg, ledgerService, false, &user.User{})
	if err != nil {
		logger.Error("Failed to prepare ledger storage: %v", err)
		os.Exit(1)
	}

	r := router.NewLedgerRouter(cfg, backends)
	serve(cfg, router.LedgerServiceName, r, nil)
}
