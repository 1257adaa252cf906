package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kevinaaaquil/library/config"
	"github.com/kevinaaaquil/library/handlers"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/service"
	"github.com/kevinaaaquil/library/store"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "librarian",
		Short:         "Library management API for members, books and loans",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "indexes",
			Short: "Create all collection indexes and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(cmd.Context(), func(ctx context.Context, db *store.DB, _ *config.Config) error {
					return db.EnsureIndexes(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "mark-overdue",
			Short: "Flag every active loan past its due date as overdue",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDB(cmd.Context(), func(ctx context.Context, db *store.DB, _ *config.Config) error {
					n, err := service.NewLoanService(db, db, db).RefreshOverdue(ctx)
					if err != nil {
						return err
					}
					slog.Info("overdue loans flagged", "count", n)
					return nil
				})
			},
		},
		newCreateAdminCmd(),
	)
	return root
}

// newCreateAdminCmd creates an admin account directly in the store. Over HTTP
// only an existing admin can grant the role.
func newCreateAdminCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin member; the password is read from ADMIN_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("ADMIN_PASSWORD")
			if password == "" {
				return errors.New("ADMIN_PASSWORD is required")
			}
			return withDB(cmd.Context(), func(ctx context.Context, db *store.DB, _ *config.Config) error {
				if err := db.EnsureIndexes(ctx); err != nil {
					return err
				}
				members := service.NewMemberService(db, db, service.BcryptHasher{})
				m, err := members.Create(ctx, service.CreateMemberInput{
					Name: name, Email: email, Password: password, Role: models.RoleAdmin,
				})
				if err != nil {
					return err
				}
				slog.Info("admin created", "id", m.ID.Hex(), "email", m.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func setup() (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return nil, err
	}
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}

func connect(ctx context.Context, cfg *config.Config) (*store.DB, error) {
	pool := store.DefaultPoolOptions()
	pool.MinPoolSize = cfg.MongoMinPool
	pool.MaxPoolSize = cfg.MongoMaxPool
	pool.MaxConnIdleTime = cfg.MongoMaxIdle
	pool.OperationTimeout = cfg.MongoTimeout
	pool.ServerSelectionTimeout = cfg.MongoSelectTimeout

	connectCtx, cancel := context.WithTimeout(ctx, pool.ConnectTimeout+pool.ServerSelectionTimeout)
	defer cancel()
	return store.NewMongoDB(connectCtx, cfg.MongoURI, cfg.DBName, pool)
}

// withDB runs fn against a connected store and disconnects afterwards.
func withDB(ctx context.Context, fn func(context.Context, *store.DB, *config.Config) error) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	db, err := connect(ctx, cfg)
	if err != nil {
		slog.Error("mongodb connect failed", "error", err)
		return err
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Warn("mongodb disconnect", "error", err)
		}
	}()
	if err := fn(ctx, db, cfg); err != nil {
		slog.Error("command failed", "error", err)
		return err
	}
	return nil
}

func runServe(ctx context.Context) error {
	return withDB(ctx, func(ctx context.Context, db *store.DB, cfg *config.Config) error {
		if err := db.EnsureIndexes(ctx); err != nil {
			return err
		}

		var bookOpts []service.BookOption
		if cfg.S3Bucket != "" {
			s3Service, err := service.NewS3Service(ctx, service.S3Config{
				Bucket:          cfg.S3Bucket,
				Region:          cfg.S3Region,
				AccessKeyID:     cfg.S3AccessKeyID,
				SecretAccessKey: cfg.S3SecretKey,
			})
			if err != nil {
				return err
			}
			bookOpts = append(bookOpts, service.WithCoverStorage(s3Service))
		} else {
			slog.Warn("AWS_S3_BUCKET not set; cover uploads disabled")
		}
		bookOpts = append(bookOpts, service.WithMetadataFetcher(service.NewMetadataClient(cfg.GoogleBooksURL)))

		var loanOpts []service.LoanOption
		if cfg.MailEnabled() {
			mailer := service.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
			loanOpts = append(loanOpts, service.WithReminderSender(mailer))
		} else {
			slog.Warn("SMTP not configured; loan reminders disabled")
		}

		router := handlers.NewRouter(handlers.RouterConfig{
			Members:        service.NewMemberService(db, db, service.BcryptHasher{}),
			Books:          service.NewBookService(db, db, bookOpts...),
			Loans:          service.NewLoanService(db, db, db, loanOpts...),
			DB:             db,
			JWTSecret:      cfg.JWTSecret,
			TokenTTL:       cfg.JWTTTL,
			MaxUploadBytes: cfg.MaxUploadMB * 1024 * 1024,
			CORSOrigins:    cfg.CORSOrigins,
		})

		server := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			slog.Info("server listening", "addr", server.Addr, "env", cfg.Env)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		quit, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		select {
		case err := <-errCh:
			return err
		case <-quit.Done():
		}

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
			return err
		}
		return nil
	})
}
