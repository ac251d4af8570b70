package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth [api-key]",
		Short: "Verify and store a NextDNS API key",
		Long: `auth checks the key against the NextDNS API and saves it to the credentials file.
Without an argument the key is read from the terminal without echo.
The key can be found at https://my.nextdns.io/account.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), "Enter NextDNS API Key:")
				b, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("error reading from stdin: %w", err)
				}
				key = string(b)
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("api key cannot be empty")
			}

			if err := a.verifyKey(cmd.Context(), key); err != nil {
				return err
			}
			a.logger.Debug("key verified successfully")

			if err := writeConfig(a.configPath, config{APIKey: key}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key saved to %s\n", a.configPath)
			return nil
		},
	}
}

// verifyKey lists profiles with key to make sure the service accepts it.
func (a *app) verifyKey(ctx context.Context, key string) error {
	c, err := a.clientWithKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	a.logger.Debug("verifying key...")
	if _, err := c.Profiles(ctx); err != nil {
		return fmt.Errorf("unable to verify api key: %w", err)
	}
	return nil
}
