package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/sqlnb/internal/attachment"
	"github.com/xxxsen/sqlnb/internal/autosave"
	"github.com/xxxsen/sqlnb/internal/codec"
	"github.com/xxxsen/sqlnb/internal/config"
	"github.com/xxxsen/sqlnb/internal/handler"
	"github.com/xxxsen/sqlnb/internal/job"
	"github.com/xxxsen/sqlnb/internal/middleware"
	"github.com/xxxsen/sqlnb/internal/model"
	"github.com/xxxsen/sqlnb/internal/pkg/jwt"
	"github.com/xxxsen/sqlnb/internal/schedule"
	"github.com/xxxsen/sqlnb/internal/service"
	"github.com/xxxsen/sqlnb/internal/sqlnbfile"
	"github.com/xxxsen/sqlnb/internal/storage"
	"github.com/xxxsen/sqlnb/internal/validator"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "sqlnb",
		Short: "sql notebook file server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (json or yaml)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run sqlnb server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "validate .sqlnb or exported json files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				var res validator.Result
				if isJSON(path) {
					res = validator.ValidateJSON(string(data))
				} else {
					res = validator.ValidateText(string(data))
				}
				out := cmd.OutOrStdout()
				for _, w := range res.Warnings {
					fmt.Fprintf(out, "%s: warning: %s\n", path, w)
				}
				for _, e := range res.Errors {
					fmt.Fprintf(out, "%s: error: %s\n", path, e)
				}
				if !res.Valid {
					failed++
					continue
				}
				fmt.Fprintf(out, "%s: ok\n", path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files invalid", failed, len(args))
			}
			return nil
		},
	}

	convertCmd := &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "convert between .sqlnb and json, picked by extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return convert(newCodec(cfg), args[0], args[1])
		},
	}

	var userID string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "issue an api token signed with jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("jwt_secret is not configured")
			}
			token, err := jwt.GenerateToken(userID, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&userID, "user", "local", "user id stored in the token")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "load and validate every stored notebook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			adapter, err := storage.New(cfg.Storage)
			if err != nil {
				return fmt.Errorf("init storage: %w", err)
			}
			files := newFileHandler(cfg, adapter)
			report, err := job.NewIntegrityCheckJob(files, cfg.Jobs.IntegrityWorkers).Check(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, item := range report.Invalid {
				fmt.Fprintf(out, "%s: %s\n", item.Name, strings.Join(item.Errors, "; "))
			}
			fmt.Fprintf(out, "checked %d files, %d invalid\n", report.Checked, len(report.Invalid))
			if len(report.Invalid) > 0 {
				return fmt.Errorf("%d invalid files", len(report.Invalid))
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, validateCmd, convertCmd, tokenCmd, checkCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

// loadConfig reads path when given, otherwise falls back to in-memory
// storage with default settings.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	if path != "" {
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	}
	return cfg, nil
}

func newCodec(cfg *config.Config) *codec.Codec {
	return codec.New(
		codec.WithLanguage(cfg.Document.Language),
		codec.WithEnvironment(cfg.Document.Environment),
		codec.WithAuthor(cfg.Document.Author),
	)
}

func newFileHandler(cfg *config.Config, adapter storage.Adapter) *sqlnbfile.Handler {
	return sqlnbfile.New(adapter,
		sqlnbfile.WithCodec(newCodec(cfg)),
		sqlnbfile.WithTimeout(time.Duration(cfg.AutoSave.SaveTimeoutMs)*time.Millisecond),
	)
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("storage", cfg.Storage.Type),
		zap.Int("cache_size", cfg.Storage.Cache.Size),
		zap.Bool("auth", cfg.JWTSecret != ""),
	)

	adapter, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	files := newFileHandler(cfg, adapter)
	saver := autosave.New(files,
		autosave.WithDelay(time.Duration(cfg.AutoSave.DelayMs)*time.Millisecond),
		autosave.WithSaveTimeout(time.Duration(cfg.AutoSave.SaveTimeoutMs)*time.Millisecond),
		autosave.WithOnSaved(func(key string, res sqlnbfile.Result) {
			if !res.Success {
				logutil.GetLogger(context.Background()).Error("auto save failed",
					zap.String("file", key), zap.Strings("errors", res.Errors))
			}
		}),
	)
	notebooks := service.NewNotebookService(files, saver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SeedSamples {
		n, err := notebooks.SeedSamples(ctx)
		if err != nil {
			return fmt.Errorf("seed samples: %w", err)
		}
		if n > 0 {
			logutil.GetLogger(ctx).Info("sample notebooks created", zap.Int("count", n))
		}
	}

	scheduler := schedule.NewCronScheduler()
	integrity := job.NewIntegrityCheckJob(files, cfg.Jobs.IntegrityWorkers)
	if cfg.Jobs.IntegrityCheckSpec != "" {
		if err := scheduler.AddJob(integrity, cfg.Jobs.IntegrityCheckSpec); err != nil {
			return fmt.Errorf("schedule integrity check: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	attachments, err := attachment.New(cfg.Attachments)
	if err != nil {
		return fmt.Errorf("init attachment store: %w", err)
	}

	deps := handler.RouterDeps{
		Notebooks:       handler.NewNotebookHandler(notebooks),
		Transfer:        handler.NewTransferHandler(notebooks, cfg.MaxUploadSize),
		Maintenance:     handler.NewMaintenanceHandler(scheduler, integrity),
		Attachments:     handler.NewAttachmentHandler(attachments, notebooks, cfg.Attachments.MaxSize),
		JWTSecret:       []byte(cfg.JWTSecret),
		ImportRateLimit: time.Duration(cfg.ImportRateLimitMs) * time.Millisecond,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping, flushing pending saves")
	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := notebooks.Close(flushCtx); err != nil {
		logutil.GetLogger(context.Background()).Error("flush pending saves failed", zap.Error(err))
		return err
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// convert rewrites in as out. Both sides are validated on the way.
func convert(c *codec.Codec, in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	text := string(data)
	var check validator.Result
	if isJSON(in) {
		check = validator.ValidateJSON(text)
	} else {
		check = validator.ValidateText(text)
	}
	if err := check.Err(); err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	var notebook *model.Notebook
	if isJSON(in) {
		notebook, err = c.ImportJSON(text)
	} else {
		notebook, err = c.ImportYAML(text)
	}
	if err != nil {
		return err
	}
	var rendered string
	if isJSON(out) {
		rendered, err = c.ExportJSON(notebook, nil, true)
	} else {
		rendered, err = c.ExportYAML(notebook, nil)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(out, []byte(rendered), 0o644)
}
