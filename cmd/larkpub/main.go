package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"larkpub/internal/config"
	"larkpub/internal/lark"
	"larkpub/internal/publish"
	"larkpub/internal/version"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var rootCmd = &cobra.Command{
	Use:   "larkpub [root]",
	Short: "Publish 00_Publish directories to Lark Drive",
	Long: `larkpub scans a directory tree for publish directories, uploads their
contents to a Lark Drive folder mirroring the local structure, and skips
files whose content already made it up in an earlier run.`,
	Args:    cobra.MaximumNArgs(1),
	Version: version.Detailed(),
	RunE:    runPublish,
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().Bool("dry-run", false, "List what would upload without touching the remote")
	rootCmd.Flags().Bool("concurrent", false, "Upload with the worker pool instead of serially")
	rootCmd.Flags().Bool("retry", false, "Retry recorded failures instead of scanning")
	rootCmd.Flags().Bool("force", false, "Upload even when the history says unchanged")
	rootCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "larkpub config file")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// config is good, errors past this point are runtime errors
	cmd.SilenceUsage = true
	showHeader()

	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	opts := publish.RunOptions{Root: root}
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	opts.Concurrent, _ = cmd.Flags().GetBool("concurrent")
	opts.Retry, _ = cmd.Flags().GetBool("retry")
	opts.Force, _ = cmd.Flags().GetBool("force")

	client, err := lark.New(&lark.Options{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		Limiter:   publish.NewRateLimiter(cfg.RateLimit),
	})
	if err != nil {
		return err
	}

	state, err := publish.OpenState(cfg.StateDir)
	if err != nil {
		return err
	}
	defer state.Close()

	summary, err := publish.NewEngine(cfg, client, state).Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if opts.DryRun {
		printDryRun(summary)
		return nil
	}
	printSummary(summary, state.Dir())
	if summary.Failed > 0 {
		return fmt.Errorf("%d upload(s) failed, fix the cause and run with --retry", summary.Failed)
	}
	return nil
}

func main() {
	// credentials commonly live in a .env next to the tree being published
	_ = godotenv.Load()

	setupLogger(slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogger(level slog.Level) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})))
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// config path
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".larkpub"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return nil, fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetDefault("base_url", config.DefaultBaseURL)
	viper.SetDefault("state_dir", config.DefaultStateDir)
	viper.SetDefault("publish_dir", config.DefaultPublishDir)
	viper.SetDefault("ignore_file", config.DefaultIgnoreFile)
	viper.SetDefault("rate_limit", config.DefaultRateLimit)
	viper.SetDefault("workers", config.DefaultWorkers)
	viper.SetDefault("max_file_size", config.DefaultMaxFileSize)
	viper.SetDefault("timeout", config.DefaultTimeout)

	// FEISHU_APP_ID, FEISHU_APP_SECRET, FEISHU_PARENT_NODE, ...
	viper.SetEnvPrefix("FEISHU")
	viper.AutomaticEnv()

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		setupLogger(slog.LevelDebug)
	}

	return &config.Config{
		Path:        viper.ConfigFileUsed(),
		AppID:       viper.GetString("app_id"),
		AppSecret:   viper.GetString("app_secret"),
		ParentNode:  viper.GetString("parent_node"),
		BaseURL:     viper.GetString("base_url"),
		StateDir:    viper.GetString("state_dir"),
		PublishDir:  viper.GetString("publish_dir"),
		RateLimit:   viper.GetInt("rate_limit"),
		Workers:     viper.GetInt("workers"),
		MaxFileSize: viper.GetInt64("max_file_size"),
		Timeout:     viper.GetDuration("timeout"),
		Include:     viper.GetStringSlice("include"),
		Exclude:     viper.GetStringSlice("exclude"),
		IgnoreFile:  viper.GetString("ignore_file"),
	}, nil
}
