package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/config"
	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
	"github.com/hezretaly/toefl/internal/repositories/postgres"
	"github.com/hezretaly/toefl/internal/services"
	"github.com/hezretaly/toefl/internal/validator"
	"github.com/hezretaly/toefl/pkg"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "toeflctl",
		Short:        "Operator tasks for the exam platform",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(), createUserCmd(), exportCmd())
	return root
}

// env is the database backed stack shared by the commands
type env struct {
	cfg    *config.Config
	db     *gorm.DB
	repo   repositories.Repository
	logger *slog.Logger
}

func openEnv() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:    cfg,
		db:     db,
		repo:   postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db}),
		logger: logger,
	}, nil
}

func (e *env) close() {
	if sqlDB, err := e.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func createUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account with any role",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			username, _ := f.GetString("username")
			email, _ := f.GetString("email")
			password, _ := f.GetString("password")
			role, _ := f.GetString("role")

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			authService := services.NewAuthService(e.repo, e.db, e.logger, validator.New(),
				auth.NewTokenIssuer(e.cfg.JWTSecret, e.cfg.TokenTTL), nil)

			user, err := authService.CreateUser(cmd.Context(), &services.CreateUserRequest{
				Username: username,
				Email:    email,
				Password: password,
				Role:     models.UserRole(strings.ToLower(role)),
			})
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created %s %q with id %d\n", user.Role, user.Username, user.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.String("username", "", "Username (required)")
	f.String("email", "", "Email address (required)")
	f.String("password", "", "Password (required)")
	f.String("role", string(models.RoleStudent), "Role (student, teacher, admin)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the results workbook of a section",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			sectionType, _ := f.GetString("type")
			sectionID, _ := f.GetUint("section")
			asEmail, _ := f.GetString("as")
			output, _ := f.GetString("output")

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			reviewer, err := e.repo.User().GetByEmail(ctx, nil, strings.ToLower(asEmail))
			if err != nil {
				return fmt.Errorf("failed to find reviewer %s: %w", asEmail, err)
			}

			exportService := services.NewExportService(services.NewReviewService(e.repo, e.db, e.logger), e.logger)
			file, err := exportService.ExportSectionResults(ctx, auth.Identity{UserID: reviewer.ID, Role: reviewer.Role},
				models.SectionType(sectionType), sectionID)
			if err != nil {
				return err
			}

			if output == "" {
				output = file.Filename
			}
			if err := os.WriteFile(output, file.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	f := cmd.Flags()
	f.String("type", "", "Section type (required)")
	f.Uint("section", 0, "Section ID (required)")
	f.String("as", "", "Email of the teacher or admin running the export (required)")
	f.StringP("output", "o", "", "Output path (default: generated file name)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("section")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}
