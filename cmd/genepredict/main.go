package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/app"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/cli"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/config"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/keybinds"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/logging"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/tui"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// the failed state was already printed
		if !errors.Is(err, cli.ErrRequestFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "genepredict",
	Short: "Gene expression disease prediction client",
	Long: `genepredict submits gene expression values to a prediction API and
shows the predicted disease labels.

Run without arguments to start the interactive form, or use a subcommand
for one-shot predictions.

Examples:
  genepredict                                  # Start the interactive form
  genepredict predict 1.2,0.5,-0.8             # Predict from values
  genepredict predict --file sample.csv -o json
  genepredict login --username ada             # Prompts for the password
  genepredict history                          # Your server-side history
  genepredict mock-server --variant deep       # Offline API for development`,
	Version:       version.Version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		keys, result, err := keybinds.LoadOrDefault(filepath.Join(config.ConfigDir, "keybinds.json"))
		if err != nil {
			return err
		}
		for _, w := range result.Warnings {
			a.Logger.Warn("keybinds", zap.String("warning", w.Error()))
		}

		return tui.Run(cmd.Context(), a, keys, tui.Options{
			Version:      version.Version,
			CheckUpdates: !flagNoUpdateCheck,
		})
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict [values]",
	Short: "Submit expression values or a CSV file for prediction",
	Long: `Submit comma-separated expression values or a CSV file to POST /predict.

Values come from the argument, --values, or stdin when neither is given.
A file given with --file wins over values. Exits 1 when the prediction fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		values := flagValues
		if len(args) > 0 {
			values = args[0]
		}
		return cli.Predict(cmd.Context(), a, cli.PredictOptions{
			Values:        values,
			File:          flagFile,
			OutputOptions: outputOptions(),
		}, cmd.OutOrStdout())
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return cli.Login(cmd.Context(), a, authOptions(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return cli.Register(cmd.Context(), a, authOptions(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return cli.Logout(a, cmd.OutOrStdout())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the API, session and local log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return cli.Status(a, outputOptions(), cmd.OutOrStdout())
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List your predictions stored by the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return cli.History(cmd.Context(), a, outputOptions(), cmd.OutOrStdout())
	},
}

var historyLocalCmd = &cobra.Command{
	Use:   "local",
	Short: "List submissions from the local log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return cli.LocalHistory(a, flagLimit, outputOptions(), cmd.OutOrStdout())
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every submission from the local log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return cli.ClearLocalHistory(a, cmd.OutOrStdout())
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the local submission log per API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		baseURL := ""
		if !flagAllOrigins {
			baseURL = a.Settings.BaseURL
		}
		return cli.HistoryStats(a, baseURL, outputOptions(), cmd.OutOrStdout())
	},
}

var historyToggleCmd = &cobra.Command{
	Use:       "log on|off",
	Short:     "Turn the local submission log on or off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch args[0] {
		case "on":
			enabled = true
		case "off":
		default:
			return fmt.Errorf("expected on or off, got %q", args[0])
		}

		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Session.SetHistoryEnabled(enabled); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Local submission log %s\n", args[0])
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant (one message with --message, otherwise a REPL)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()
		return cli.Chat(cmd.Context(), a, flagMessage, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Serve an in-memory prediction API for development",
	Long: `Serve /predict, /register, /login, /history and /chatbot from memory.

Predictions are deterministic from the mean of the submitted values.
Settings come from --config (YAML) and are overridden by flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.MockServerOptions{
			ConfigPath: flagMockConfig,
			Port:       -1,
			Variant:    flagMockVariant,
			Delay:      flagMockDelay,
		}
		if flagMockAddr != "" {
			host, port, err := splitAddr(flagMockAddr)
			if err != nil {
				return err
			}
			opts.Host, opts.Port = host, port
		}

		logger, err := logging.New(logging.Options{Verbose: flagVerbose, Stderr: flagVerbose})
		if err != nil {
			return err
		}
		defer logger.Sync()
		return cli.RunMockServer(cmd.Context(), opts, logger, cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "genepredict %s\n", version.Version)
		if !flagCheck {
			return nil
		}

		update, err := version.NewChecker().CheckForUpdate(cmd.Context(), version.Version)
		if err != nil {
			return err
		}
		if update.Available {
			fmt.Fprintf(out, "Update available: %s (%s)\n", update.Latest, update.URL)
		} else {
			fmt.Fprintln(out, "You are on the latest version")
		}
		return nil
	},
}

// Persistent flags
var (
	flagConfigDir string
	flagBaseURL   string
	flagVariant   string
	flagNaNPolicy string
	flagVerbose   bool
)

// Output flags
var (
	flagOutput string
	flagFilter string
	flagQuery  string
	flagSave   string
	flagFull   bool
)

var (
	flagValues        string
	flagFile          string
	flagUsername      string
	flagPasswordStdin bool
	flagLimit         int
	flagAllOrigins    bool
	flagMessage       string
	flagCheck         bool
	flagNoUpdateCheck bool

	flagMockConfig  string
	flagMockAddr    string
	flagMockVariant string
	flagMockDelay   int
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigDir, "config-dir", "", "Configuration directory (default ~/.genepredict)")
	pf.StringVar(&flagBaseURL, "base-url", "", "Prediction API base URL")
	pf.StringVar(&flagVariant, "variant", "", "API variant (classic/deep)")
	pf.StringVar(&flagNaNPolicy, "nan-policy", "", "Unparsable values: strict rejects, passthrough sends null")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging (stderr for commands, log file for the form)")

	rootCmd.Flags().BoolVar(&flagNoUpdateCheck, "no-update-check", false, "Skip the release check on start")

	for _, c := range []*cobra.Command{predictCmd, statusCmd, historyCmd, historyLocalCmd, historyStatsCmd} {
		addOutputFlags(c)
	}

	predictCmd.Flags().StringVar(&flagValues, "values", "", "Comma-separated expression values")
	predictCmd.Flags().StringVarP(&flagFile, "file", "F", "", "CSV file to upload instead of values")

	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&flagUsername, "username", "u", "", "Username (prompted when empty)")
		c.Flags().BoolVar(&flagPasswordStdin, "password-stdin", false, "Read the password from stdin")
	}

	historyLocalCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "Maximum entries to list")
	historyStatsCmd.Flags().BoolVar(&flagAllOrigins, "all", false, "Include every API origin, not just the configured one")
	historyCmd.AddCommand(historyLocalCmd, historyClearCmd, historyStatsCmd, historyToggleCmd)

	chatCmd.Flags().StringVarP(&flagMessage, "message", "m", "", "Send one message and exit")

	mockServerCmd.Flags().StringVarP(&flagMockConfig, "config", "c", "", "Mock server YAML config")
	mockServerCmd.Flags().StringVar(&flagMockAddr, "addr", "", "Listen address, e.g. :8080")
	mockServerCmd.Flags().StringVar(&flagMockVariant, "variant", "", "Served variant (classic/deep)")
	mockServerCmd.Flags().IntVar(&flagMockDelay, "delay", 0, "Response delay in milliseconds")

	versionCmd.Flags().BoolVar(&flagCheck, "check", false, "Check GitHub for a newer release")

	rootCmd.AddCommand(predictCmd, loginCmd, registerCmd, logoutCmd, statusCmd,
		historyCmd, chatCmd, mockServerCmd, versionCmd)
}

func addOutputFlags(c *cobra.Command) {
	c.Flags().StringVarP(&flagOutput, "output", "o", "", "Output format (text/json/yaml/body)")
	c.Flags().StringVar(&flagFilter, "filter", "", "JMESPath filter applied to the result")
	c.Flags().StringVarP(&flagQuery, "query", "q", "", "JMESPath query printed as raw values")
	c.Flags().StringVarP(&flagSave, "save", "s", "", "Write the output to a file")
	c.Flags().BoolVarP(&flagFull, "full", "f", false, "Include request id, duration and chart")
}

func outputOptions() cli.OutputOptions {
	return cli.OutputOptions{
		Format:   flagOutput,
		Filter:   flagFilter,
		Query:    flagQuery,
		SavePath: flagSave,
		Full:     flagFull,
	}
}

func authOptions() cli.AuthOptions {
	return cli.AuthOptions{Username: flagUsername, PasswordStdin: flagPasswordStdin}
}

// setup loads configuration and wires the client. The form logs to the
// log file since it owns the terminal.
func setup(cmd *cobra.Command, forTUI bool) (*app.App, error) {
	var err error
	if flagConfigDir != "" {
		err = config.InitializeAt(flagConfigDir)
	} else {
		err = config.Initialize()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}

	settings, err := config.LoadSettings(config.SettingsFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		settings.BaseURL = flagBaseURL
	}
	if flags.Changed("variant") {
		settings.Variant = config.Variant(flagVariant)
	}
	if flags.Changed("nan-policy") {
		settings.NaNPolicy = flagNaNPolicy
	}

	logOpts := logging.Options{Level: settings.LogLevel, Verbose: flagVerbose}
	if forTUI {
		logOpts.File = config.LogFile
	} else {
		logOpts.Stderr = flagVerbose
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	return app.New(app.Options{
		Settings: settings,
		Logger:   logger,
		LocalDB:  config.DatabasePath,
	})
}

// splitAddr parses host:port; the host may be empty
func splitAddr(addr string) (string, int, error) {
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in --addr %q", addr)
	}
	return host, port, nil
}
