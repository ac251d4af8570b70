package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Travis-Britz/nextdns"
)

// syncFlags are the reconciliation settings shared by import and sync.
type syncFlags struct {
	concurrency int
	dryRun      bool
	allowEmpty  bool
	metricsFile string
}

func (f *syncFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 1, "Parallel API calls within each stage")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Show what would change without changing anything")
	cmd.Flags().BoolVar(&f.allowEmpty, "allow-empty", false, "Allow an empty source to clear the list")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write results in Prometheus textfile format to this path")
}

func (f *syncFlags) options(a *app, kind nextdns.ListKind, format string) []nextdns.SyncOption {
	return []nextdns.SyncOption{
		nextdns.SyncList(kind),
		nextdns.SyncFormat(nextdns.Format(format)),
		nextdns.SyncConcurrency(f.concurrency),
		nextdns.SyncDryRun(f.dryRun),
		nextdns.SyncAllowEmpty(f.allowEmpty),
		nextdns.SyncLogger(a.logger),
	}
}

// newListCmd builds the add, remove and import commands for one profile list.
func newListCmd(a *app, kind nextdns.ListKind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: fmt.Sprintf("Manage a profile %s", kind),
	}
	cmd.AddCommand(
		newAddCmd(a, kind),
		newRemoveCmd(a, kind),
		newImportCmd(a, kind),
	)
	return cmd
}

func newAddCmd(a *app, kind nextdns.ListKind) *cobra.Command {
	var inactive bool
	cmd := &cobra.Command{
		Use:   "add <profileId> <domain>...",
		Short: fmt.Sprintf("Add domains to a %s", kind),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, domains, err := domainArgs(args)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			var errs []error
			for _, d := range domains {
				if err := c.AddEntry(cmd.Context(), kind, profileID, d, !inactive); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s.\n", d, kind)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Add the domains switched off")
	return cmd
}

func newRemoveCmd(a *app, kind nextdns.ListKind) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <profileId> <domain>...",
		Short: fmt.Sprintf("Remove domains from a %s", kind),
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, domains, err := domainArgs(args)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			var errs []error
			for _, d := range domains {
				if err := c.RemoveEntry(cmd.Context(), kind, profileID, d); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s.\n", d, kind)
			}
			return errors.Join(errs...)
		},
	}
}

func newImportCmd(a *app, kind nextdns.ListKind) *cobra.Command {
	var (
		flags    syncFlags
		inactive bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "import <profileId> <path-or-url>",
		Short: fmt.Sprintf("Make a %s match a file or URL", kind),
		Long: fmt.Sprintf(`import reads one domain per line from a local file or an http(s) URL and
reconciles the profile %s with it: listed domains that are missing are added,
domains no longer in the source are removed, and the rest are left alone.`, kind),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID, location := args[0], args[1]
			if profileID == "" {
				return nextdns.ErrEmptyProfileID
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			s, err := nextdns.NewSyncer(c, flags.options(a, kind, format)...)
			if err != nil {
				return err
			}

			summary, err := s.Import(cmd.Context(), profileID, nextdns.OpenSource(location), !inactive)
			if !applied(err) {
				return err
			}
			res := syncResult{ProfileID: profileID, Kind: kind, Summary: summary, Err: err}
			res.print(cmd.OutOrStdout(), flags.dryRun)
			if flags.metricsFile != "" {
				if merr := writeMetrics(flags.metricsFile, []syncResult{res}); merr != nil {
					return errors.Join(err, merr)
				}
			}
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Keep imported domains listed but switched off")
	cmd.Flags().StringVar(&format, "format", string(nextdns.FormatPlain), "Source format: plain, hosts or adblock")
	return cmd
}

// applied reports whether err still comes with a Summary of changes made:
// the sync ran but some calls failed or it was interrupted.
func applied(err error) bool {
	var psf *nextdns.PartialSyncFailure
	return err == nil ||
		errors.As(err, &psf) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// domainArgs splits a profile id and normalized domains, rejecting bad input before any API call.
func domainArgs(args []string) (string, []string, error) {
	profileID := args[0]
	if profileID == "" {
		return "", nil, nextdns.ErrEmptyProfileID
	}
	var domains []string
	for _, raw := range args[1:] {
		d, err := nextdns.NormalizeDomain(raw)
		if err != nil {
			return "", nil, err
		}
		domains = append(domains, d)
	}
	return profileID, domains, nil
}
