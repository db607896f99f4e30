package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mediconnect/mediconnect/internal/config"
	"github.com/mediconnect/mediconnect/internal/domain/identity"
	"github.com/mediconnect/mediconnect/internal/platform/auth"
	"github.com/mediconnect/mediconnect/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mediconnect-server",
		Short: "MediConnect clinic API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// connect loads the configuration and opens the pool. Callers close the pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			count, err := db.NewMigrator(pool, db.MigrationsFS(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			statuses, err := db.NewMigrator(pool, db.MigrationsFS(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			password, _ := cmd.Flags().GetString("password")
			if email == "" || name == "" || password == "" {
				return fmt.Errorf("--email, --name and --password are required")
			}

			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			u, err := newIdentityService(cfg, pool, nil).CreateAdmin(ctx, email, name, password)
			if err != nil {
				return err
			}
			fmt.Printf("Created admin %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	createAdmin.Flags().String("email", "", "Login email")
	createAdmin.Flags().String("name", "", "Display name")
	createAdmin.Flags().String("password", "", "Initial password (min 6 characters)")
	cmd.AddCommand(createAdmin)

	deactivate := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate an account by email",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				return fmt.Errorf("--email is required")
			}

			ctx := cmd.Context()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			u, err := newIdentityService(cfg, pool, nil).DeactivateByEmail(ctx, email)
			if err != nil {
				return err
			}
			fmt.Printf("Deactivated %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}
	deactivate.Flags().String("email", "", "Login email")
	cmd.AddCommand(deactivate)

	return cmd
}

// newIdentityService builds the identity service. access may be nil for
// CLI commands, which run without a principal.
func newIdentityService(cfg *config.Config, pool *pgxpool.Pool, access *auth.Evaluator) *identity.Service {
	return identity.NewService(
		db.NewTxRunner(pool),
		identity.NewUserRepoPG(pool),
		identity.NewPatientRepoPG(pool),
		identity.NewDoctorRepoPG(pool),
		identity.NewNurseRepoPG(pool),
		access,
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		auth.NewPasswordHasher(cfg.BcryptCost),
	)
}
