package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/wxgate/weather-gateway/internal/config"
	"github.com/wxgate/weather-gateway/internal/db"
	"github.com/wxgate/weather-gateway/internal/model"
	"github.com/wxgate/weather-gateway/internal/repository"
	"github.com/wxgate/weather-gateway/internal/util"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys (create | revoke | list)",
}

var (
	createName string
	createTier string
)

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, ok := model.ParseTier(createTier)
		if !ok {
			return fmt.Errorf("unknown tier %q (basic | premium | enterprise)", createTier)
		}
		if createName == "" {
			return fmt.Errorf("--name is required")
		}

		dbx, err := connectMySQL()
		if err != nil {
			return err
		}
		defer dbx.Close()

		key := util.NewAPIKey(tier.String())
		repo := repository.NewKeysRepository(dbx)
		id, err := repo.Insert(cmd.Context(), model.APIKey{Key: key, Name: createName, Tier: tier})
		if err != nil {
			return fmt.Errorf("insert key: %w", err)
		}

		fmt.Printf("id=%d tier=%s\n%s\n", id, tier, key)
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbx, err := connectMySQL()
		if err != nil {
			return err
		}
		defer dbx.Close()

		repo := repository.NewKeysRepository(dbx)
		ok, err := repo.Revoke(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("revoke key: %w", err)
		}
		if !ok {
			return fmt.Errorf("key not found")
		}

		fmt.Println("revoked")
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbx, err := connectMySQL()
		if err != nil {
			return err
		}
		defer dbx.Close()

		repo := repository.NewKeysRepository(dbx)
		keys, err := repo.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}

		for _, k := range keys {
			status := "active"
			if k.Revoked {
				status = "revoked"
			}
			fmt.Printf("%-6d %-12s %-8s %-24s %s\n", k.ID, k.Tier, status, k.Name, k.Key)
		}
		return nil
	},
}

func init() {
	keysCreateCmd.Flags().StringVar(&createName, "name", "", "human-readable owner name")
	keysCreateCmd.Flags().StringVar(&createTier, "tier", "basic", "tier: basic | premium | enterprise")

	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysRevokeCmd)
	keysCmd.AddCommand(keysListCmd)
}

func connectMySQL() (*sqlx.DB, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	return dbx, nil
}
