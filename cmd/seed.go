package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/wxgate/weather-gateway/internal/config"
	"github.com/wxgate/weather-gateway/internal/db"
	"github.com/wxgate/weather-gateway/internal/model"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo API keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		log.Println(">> Seeding demo API keys...")

		if err := seedKeys(mysqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

// seedKeys inserts deterministic demo keys, one per tier plus a revoked one.
// Idempotent: api_key is UNIQUE, reruns only touch updated_at.
func seedKeys(dbx *sqlx.DB) error {
	keys := []model.APIKey{
		{
			Name:    "Demo Basic",
			Key:     "basic_1111111111111111111111111111111111111111111",
			Tier:    model.TierBasic,
			Revoked: false,
		},
		{
			Name:    "Demo Premium",
			Key:     "premium_222222222222222222222222222222222222222222",
			Tier:    model.TierPremium,
			Revoked: false,
		},
		{
			Name:    "Demo Enterprise",
			Key:     "enterprise_3333333333333333333333333333333333333333",
			Tier:    model.TierEnterprise,
			Revoked: false,
		},
		{
			Name:    "Demo Revoked",
			Key:     "basic_4444444444444444444444444444444444444444444",
			Tier:    model.TierBasic,
			Revoked: true,
		},
	}

	const q = `
INSERT INTO api_keys
    (api_key, name, tier, revoked, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name       = VALUES(name),
    tier       = VALUES(tier),
    revoked    = VALUES(revoked),
    updated_at = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, k := range keys {
		if _, err := tx.Exec(q, k.Key, k.Name, k.Tier.String(), k.Revoked, now, now); err != nil {
			return fmt.Errorf("insert key %q: %w", k.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit keys: %w", err)
	}
	return nil
}
