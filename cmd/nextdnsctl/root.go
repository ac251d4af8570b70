package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Travis-Britz/nextdns"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app holds the persistent flags shared by every command.
type app struct {
	configPath string
	apiURL     string
	verbose    bool
	rate       float64
	retries    int
	timeout    time.Duration

	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: logrus.New()}

	root := &cobra.Command{
		Use:           "nextdnsctl",
		Short:         "Manage NextDNS profile lists",
		Long:          "nextdnsctl keeps NextDNS denylists and allowlists in sync with local files and published block lists.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger.SetOutput(cmd.ErrOrStderr())
			a.logger.SetLevel(logrus.WarnLevel)
			if a.verbose {
				a.logger.SetLevel(logrus.DebugLevel)
			}
			// .env is optional; variables already set in the environment win
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", defaultConfigPath(), "Path to the credentials file")
	flags.StringVar(&a.apiURL, "api-url", nextdns.DefaultBaseURL, "NextDNS API root")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.Float64Var(&a.rate, "rate", 5, "Maximum API requests per second (0 for unlimited)")
	flags.IntVar(&a.retries, "retries", 3, "Retries for failed API requests")
	flags.DurationVar(&a.timeout, "timeout", 30*time.Second, "Time limit for each API call, including retries")
	_ = flags.MarkHidden("api-url")
	root.SetVersionTemplate("nextdnsctl {{.Version}}\n")

	root.AddCommand(
		newAuthCmd(a),
		newProfileListCmd(a),
		newListCmd(a, nextdns.Denylist),
		newListCmd(a, nextdns.Allowlist),
		newSyncCmd(a),
		newVersionCmd(),
	)
	return root
}

// client builds an API client from the stored credentials and persistent flags.
func (a *app) client() (*nextdns.Client, error) {
	key, err := apiKey(a.configPath)
	if err != nil {
		return nil, err
	}
	return a.clientWithKey(key)
}

func (a *app) clientWithKey(key string) (*nextdns.Client, error) {
	return nextdns.New(
		nextdns.UsingAPIKey(key),
		nextdns.WithBaseURL(a.apiURL),
		nextdns.WithLogger(a.logger),
		nextdns.WithRetries(a.retries),
		nextdns.WithRateLimit(a.rate, 1),
		nextdns.WithTimeout(a.timeout),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nextdnsctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nextdnsctl %s\n", version)
		},
	}
}
