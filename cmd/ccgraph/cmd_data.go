package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ccgraph/internal/config"
	"ccgraph/internal/loader"
	"ccgraph/internal/repository/sqlite"
	"ccgraph/internal/snapshot"
)

var (
	verticesPath string
	arcsPath     string
	batchSize    int
	replaceData  bool
	checkJSON    bool
	forceConfig  bool

	importCmd = &cobra.Command{
		Use:   "import",
		Short: "Import vertex and arc dumps into the sqlite snapshot",
		Long: `Load a vertex file ("id<TAB>reversed.label") and an arc file
("src<TAB>dst"), plain or gzip compressed, into the sqlite snapshot the
sqlite backend reads. Defaults to the release's vertex file in the data
directory.`,
		RunE: runImport,
	}

	fetchCmd = &cobra.Command{
		Use:   "fetch",
		Short: "Download the files of the configured release into the data directory",
		RunE:  runFetch,
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Check that the configured release is available locally",
		RunE:  runCheck,
	}

	versionsCmd = &cobra.Command{
		Use:   "versions",
		Short: "List the published releases, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, v := range snapshot.KnownVersions() {
				marker := " "
				if v == cfg.Snapshot.Version {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, v)
			}
			return nil
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	configInitCmd = &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}
)

func init() {
	importCmd.Flags().StringVar(&verticesPath, "vertices", "", "vertex file (default: release vertex file in the data dir)")
	importCmd.Flags().StringVar(&arcsPath, "arcs", "", "arc file")
	importCmd.Flags().IntVar(&batchSize, "batch", loader.DefaultBatchSize, "rows per transaction")
	importCmd.Flags().BoolVar(&replaceData, "replace", false, "drop the existing snapshot before importing")

	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the report as JSON")

	configInitCmd.Flags().BoolVar(&forceConfig, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if verticesPath == "" {
		verticesPath = filepath.Join(cfg.Snapshot.DataDir, snapshot.VerticesFile(cfg.Snapshot.Version))
	}

	repo, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer repo.Close()

	if replaceData {
		if err := repo.Clear(cmd.Context()); err != nil {
			return err
		}
	}

	out := cmd.ErrOrStderr()
	l := loader.New(repo, loader.Options{
		BatchSize: batchSize,
		Logger:    logger,
		Progress: func(kind string, rows int64) {
			fmt.Fprintf(out, "\r%s: %s rows", kind, humanize.Comma(rows))
		},
	})

	stats, err := l.ImportSnapshot(cmd.Context(), verticesPath, arcsPath, cfg.Snapshot.Version)
	fmt.Fprintln(out)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %s vertices and %s arcs into %s in %s\n",
		humanize.Comma(stats.Vertices), humanize.Comma(stats.Arcs), cfg.Store.Path, stats.Duration.Round(time.Millisecond))
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	f := &snapshot.Fetcher{
		Client: &http.Client{Timeout: 0},
		Logger: logger,
	}
	if err := f.Fetch(cmd.Context(), cfg.Snapshot.DataDir, cfg.Snapshot.Version); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "release %s is in %s\n", cfg.Snapshot.Version, cfg.Snapshot.DataDir)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	report := snapshot.Preflight(cfg.Snapshot.DataDir, cfg.Snapshot.Version, cfg.Store.Path, logger)
	out := cmd.OutOrStdout()

	if checkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "release %s in %s\n", report.Version, report.Dir)
		for _, c := range report.Checks {
			status := "ok"
			if !c.OK {
				status = "missing"
				if !c.Required {
					status = "optional"
				}
			}
			fmt.Fprintf(out, "  %-10s %-8s %s\n", c.Name, status, c.Detail)
			for _, m := range c.Missing {
				fmt.Fprintf(out, "             - %s\n", m)
			}
		}
	}

	if !report.Ready() {
		return fmt.Errorf("release %s is not ready; run 'ccgraph fetch' then 'ccgraph import'", report.Version)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultConfigPath()
	if len(args) == 1 {
		path = args[0]
	}
	if !forceConfig {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
