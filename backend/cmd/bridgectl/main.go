// bridgectl 平台运维命令行：数据库迁移、手动触发周期任务、签发与吊销 Token
package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TrustEden/Staffing/backend/config"
	"github.com/TrustEden/Staffing/backend/internal/repository"
	"github.com/TrustEden/Staffing/backend/internal/service"
	"github.com/TrustEden/Staffing/backend/pkg/database"
	"github.com/TrustEden/Staffing/backend/pkg/jwt"
	applogger "github.com/TrustEden/Staffing/backend/pkg/logger"
	"github.com/TrustEden/Staffing/backend/pkg/redis"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:           "bridgectl",
	Short:         "Staffing bridge operator CLI",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ============================================================================
// Bootstrap
// ============================================================================

type app struct {
	cfg    *config.Config
	logger *zap.Logger
	sqlDB  *sql.DB
	svc    *service.Service
}

func (a *app) Close() {
	if a.sqlDB != nil {
		a.sqlDB.Close()
	}
	a.logger.Sync()
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		configPath = os.Getenv("BRIDGE_CONFIG")
	}
	return config.Load(configPath)
}

// bootstrap 连接数据库并组装 Service；外发通知只记录日志
func bootstrap() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := applogger.NewLogger(&cfg.Log, applogger.ProcessBridgectl)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, service.NewLogDispatcher(logger), service.SystemClock(), logger)

	return &app{cfg: cfg, logger: logger, sqlDB: sqlDB, svc: svc}, nil
}

// parseAt 解析 --at 参数，缺省为当前时间
func parseAt(at string) (time.Time, error) {
	if at == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at 必须为 RFC3339 格式: %w", err)
	}
	return t.UTC(), nil
}

// ============================================================================
// Migrate Command
// ============================================================================

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		return database.RunMigrations(a.sqlDB, a.logger)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the given number of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		return database.RollbackMigrations(a.sqlDB, migrateSteps, a.logger)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		v, dirty, err := database.MigrationVersion(a.sqlDB)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
		return nil
	},
}

// ============================================================================
// Sweep / Remind Commands
// ============================================================================

var sweepAt string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one tiered visibility sweep",
	Long: `Promote every open shift whose tier release time has passed.

The sweep is idempotent: running it twice for the same instant changes nothing
the second time. Use --at to replay a sweep for a specific instant.`,
	Example: `  bridgectl sweep
  bridgectl sweep --at 2026-03-09T07:00:00Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := parseAt(sweepAt)
		if err != nil {
			return err
		}
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.svc.Visibility.SweepAt(cmd.Context(), now)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "released_to_tier_1=%d released_to_tier_2=%d failed=%d ran_at=%s\n",
			result.ReleasedToTier1, result.ReleasedToTier2, result.Failed, result.RanAt.Format(time.RFC3339))
		return nil
	},
}

var remindAt string

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send shift-start reminders due at the given instant",
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := parseAt(remindAt)
		if err != nil {
			return err
		}
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()

		sent, err := a.svc.Reminder.SendDueRemindersAt(cmd.Context(), now)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reminded_shifts=%d\n", sent)
		return nil
	},
}

// ============================================================================
// Token Command
// ============================================================================

var (
	tokenUser    string
	tokenRole    string
	tokenCompany string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for local testing",
	Long: `Mint an access token signed with auth.jwt_secret.

Tokens in production are issued by the identity service. Leave --company empty
to mint a platform operator token.`,
	Example: `  bridgectl token --user op-1 --role admin
  bridgectl token --user u-1 --role agency_staff --company <agency-uuid>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch tokenRole {
		case "admin", "staff", "agency_admin", "agency_staff":
		default:
			return fmt.Errorf("未知角色: %s", tokenRole)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(tokenUser, tokenRole, tokenCompany)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

// ============================================================================
// Revoke Command
// ============================================================================

var revokeCmd = &cobra.Command{
	Use:   "revoke <token>",
	Short: "Blacklist an access token until it expires",
	Long: `Add the token's jti to the Redis blacklist checked by the API.

The blacklist entry lives exactly as long as the token would have. Expired
tokens are reported and left alone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		claims, err := jwt.NewManager(&cfg.Auth).ParseToken(args[0])
		if err != nil {
			return fmt.Errorf("无法吊销: %w", err)
		}
		ttl := revocationTTL(claims, time.Now())
		if ttl <= 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "token already expired")
			return nil
		}

		logger, err := applogger.NewLogger(&cfg.Log, applogger.ProcessBridgectl)
		if err != nil {
			return err
		}
		defer logger.Sync()

		rdb, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()

		if err := rdb.BlacklistToken(cmd.Context(), claims.ID, ttl); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked jti=%s user=%s ttl=%s\n", claims.ID, claims.UserID, ttl.Round(time.Second))
		return nil
	},
}

// revocationTTL Token 剩余有效期，无过期时间时返回 0
func revocationTTL(claims *jwt.Claims, now time.Time) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Time.Sub(now)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./config/config.yaml or $BRIDGE_CONFIG)")

	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "Number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)

	sweepCmd.Flags().StringVar(&sweepAt, "at", "", "Sweep instant in RFC3339 (default: now)")
	rootCmd.AddCommand(sweepCmd)

	remindCmd.Flags().StringVar(&remindAt, "at", "", "Reminder instant in RFC3339 (default: now)")
	rootCmd.AddCommand(remindCmd)

	tokenCmd.Flags().StringVarP(&tokenUser, "user", "u", "", "User ID (required)")
	tokenCmd.Flags().StringVarP(&tokenRole, "role", "r", "admin", "Role")
	tokenCmd.Flags().StringVar(&tokenCompany, "company", "", "Company ID (empty for platform operator)")
	tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)

	rootCmd.AddCommand(revokeCmd)
}
