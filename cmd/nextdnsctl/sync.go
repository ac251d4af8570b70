package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Travis-Britz/nextdns"
)

// syncFile declares the wanted lists of several profiles.
//
//	profiles:
//	  abc123:
//	    denylist:
//	      source: https://example.com/block.txt
//	    allowlist:
//	      domains: [good.com]
type syncFile struct {
	Profiles map[string]profileLists `yaml:"profiles"`

	// dir resolves relative source paths.
	dir string
}

type profileLists struct {
	Denylist  *listConfig `yaml:"denylist"`
	Allowlist *listConfig `yaml:"allowlist"`
}

type listConfig struct {
	Source   string   `yaml:"source"`
	Domains  []string `yaml:"domains"`
	Inactive bool     `yaml:"inactive"`
	Format   string   `yaml:"format"`
}

// syncJob is one profile list to reconcile.
type syncJob struct {
	ProfileID string
	Kind      nextdns.ListKind
	List      listConfig
	Dir       string
}

// source combines the list's file or URL with its inline domains.
// A relative file path is taken from dir.
func (s listConfig) source(dir string) nextdns.Source {
	var sources nextdns.MultiSource
	if s.Source != "" {
		src := nextdns.OpenSource(s.Source)
		if _, isFile := src.(nextdns.FileSource); isFile && !filepath.IsAbs(s.Source) {
			src = nextdns.FileSource(filepath.Join(dir, s.Source))
		}
		sources = append(sources, src)
	}
	if len(s.Domains) > 0 {
		sources = append(sources, nextdns.FromDomains(s.Domains...))
	}
	return sources
}

func readSyncFile(path string) (syncFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return syncFile{}, fmt.Errorf("error reading sync file: %w", err)
	}
	f := syncFile{dir: filepath.Dir(path)}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return syncFile{}, fmt.Errorf("error parsing \"%s\": %w", path, err)
	}
	return f, nil
}

// jobs validates the file and returns its lists ordered by profile id, denylist first.
func (f syncFile) jobs() ([]syncJob, error) {
	if len(f.Profiles) == 0 {
		return nil, errors.New("sync file lists no profiles")
	}
	ids := lo.Keys(f.Profiles)
	slices.Sort(ids)

	var jobs []syncJob
	for _, id := range ids {
		if id == "" {
			return nil, nextdns.ErrEmptyProfileID
		}
		lists := f.Profiles[id]
		for _, l := range []struct {
			kind nextdns.ListKind
			list *listConfig
		}{
			{nextdns.Denylist, lists.Denylist},
			{nextdns.Allowlist, lists.Allowlist},
		} {
			if l.list == nil {
				continue
			}
			if _, err := nextdns.ParseFormat(l.list.Format); err != nil {
				return nil, fmt.Errorf("profile %s %s: %w", id, l.kind, err)
			}
			jobs = append(jobs, syncJob{ProfileID: id, Kind: l.kind, List: *l.list, Dir: f.dir})
		}
	}
	if len(jobs) == 0 {
		return nil, errors.New("sync file lists no denylist or allowlist")
	}
	return jobs, nil
}

func newSyncCmd(a *app) *cobra.Command {
	var (
		flags    syncFlags
		path     string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the lists of several profiles from a YAML file",
		Long: `sync reconciles every list named in the sync file.
With --interval it keeps running and repeats the sync, rereading the file each time,
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			run := func(ctx context.Context) error {
				return syncAll(ctx, a, c, path, flags, cmd.OutOrStdout())
			}
			if interval <= 0 {
				return run(cmd.Context())
			}
			if interval < minInterval {
				a.logger.Warnf("interval %s is too short; using %s", interval, minInterval)
				interval = minInterval
			}
			every(cmd.Context(), interval, run, a.logger)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&path, "file", "f", "nextdns-sync.yaml", "Path to the sync file")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat the sync at this interval until interrupted (minimum 1m)")
	return cmd
}

// syncAll reconciles every list in the sync file at path, continuing past failures.
func syncAll(ctx context.Context, a *app, c *nextdns.Client, path string, flags syncFlags, out io.Writer) error {
	f, err := readSyncFile(path)
	if err != nil {
		return err
	}
	jobs, err := f.jobs()
	if err != nil {
		return err
	}

	var (
		results []syncResult
		errs    []error
	)
	for _, job := range jobs {
		s, err := nextdns.NewSyncer(c, flags.options(a, job.Kind, job.List.Format)...)
		if err != nil {
			return err
		}
		summary, err := s.Import(ctx, job.ProfileID, job.List.source(job.Dir), !job.List.Inactive)
		res := syncResult{ProfileID: job.ProfileID, Kind: job.Kind, Summary: summary, Err: err}
		results = append(results, res)
		res.print(out, flags.dryRun)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", job.ProfileID, job.Kind, err))
		}
		if ctx.Err() != nil {
			break
		}
	}

	if flags.metricsFile != "" {
		if err := writeMetrics(flags.metricsFile, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
