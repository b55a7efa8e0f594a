package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ccgraph/internal/codec"
	"ccgraph/internal/domain"
	"ccgraph/internal/service"
)

var (
	seedsFile      string
	minConnections int
	minShared      int
	direction      string
	outputFormat   string
	outputPath     string
	useShared      bool
	lookupID       bool
	inputFormat    string

	discoverCmd = &cobra.Command{
		Use:   "discover [seed...]",
		Short: "Rank the neighbors shared by the seed domains",
		Long: `Fetch the backlinks (or outlinks) of every seed, count how many seeds
each neighbor connects to, and print the neighbors that reach --min
connections, most connected first.

Seeds come from the arguments and/or --seeds-file (one per line, "-" for
stdin). Unknown seeds are reported and skipped.

Examples:
  ccgraph discover bbc.co.uk theguardian.com nytimes.com --min 2
  ccgraph discover --seeds-file seeds.txt --direction outlinks --format csv
  ccgraph discover --seeds-file seeds.txt --shared --format graph -o graph.json`,
		RunE: runDiscover,
	}

	sharedCmd = &cobra.Command{
		Use:   "shared [seed...]",
		Short: "List domains adjacent to at least --min-shared seeds",
		Long: `Ask the store for the domains adjacent to at least --min-shared of the
seeds in one intersection query. --min-shared 0 means all resolved seeds.`,
		RunE: runShared,
	}

	validateCmd = &cobra.Command{
		Use:   "validate [seed...]",
		Short: "Report which seeds exist in the graph",
		RunE:  runValidate,
	}

	lookupCmd = &cobra.Command{
		Use:   "lookup <domain|id>...",
		Short: "Resolve domains to vertex ids, or ids to domains with --id",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLookup,
	}

	convertCmd = &cobra.Command{
		Use:   "convert <file>",
		Short: "Re-export a saved discovery result in another format",
		Long: `Read a result written by 'discover --format json' (or yaml) and write it
in any output format. "-" reads stdin.

Example:
  ccgraph convert result.json --format graph -o graph.json`,
		Args: cobra.ExactArgs(1),
		RunE: runConvert,
	}

	neighborsCmd = &cobra.Command{
		Use:   "neighbors <domain>",
		Short: "List the direct neighbors of one domain",
		Args:  cobra.ExactArgs(1),
		RunE:  runNeighbors,
	}
)

func init() {
	for _, c := range []*cobra.Command{discoverCmd, sharedCmd, validateCmd} {
		c.Flags().StringVarP(&seedsFile, "seeds-file", "f", "", "file with one seed per line (- for stdin)")
	}
	for _, c := range []*cobra.Command{discoverCmd, sharedCmd, neighborsCmd} {
		c.Flags().StringVarP(&direction, "direction", "d", "backlinks", "backlinks or outlinks")
	}

	for _, c := range []*cobra.Command{discoverCmd, convertCmd} {
		c.Flags().StringVar(&outputFormat, "format", "json", "output format: "+strings.Join(codec.Formats(), ", "))
		c.Flags().StringVarP(&outputPath, "output", "o", "", "write to file instead of stdout")
	}
	convertCmd.Flags().StringVar(&inputFormat, "from", "json", "input format: json or yaml")

	discoverCmd.Flags().IntVarP(&minConnections, "min", "m", 0, "minimum seeds a neighbor must connect to (default from config)")
	discoverCmd.Flags().BoolVar(&useShared, "shared", false, "use the store's intersection query (no per-seed counts)")

	sharedCmd.Flags().IntVar(&minShared, "min-shared", 0, "minimum seeds in common (0 = all)")

	lookupCmd.Flags().BoolVar(&lookupID, "id", false, "arguments are vertex ids")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	seeds, err := readSeeds(args, seedsFile)
	if err != nil {
		return err
	}
	dir, err := domain.ParseDirection(direction)
	if err != nil {
		return err
	}
	exporter, err := codec.Lookup(outputFormat)
	if err != nil {
		return err
	}
	threshold := minConnections
	if threshold == 0 {
		threshold = cfg.Discovery.DefaultMinConnections
	}

	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	svc := newQueryServices(sess)

	var result *domain.DiscoveryResult
	if useShared {
		result, err = svc.intersector.SharedResult(ctx, seeds, threshold, dir)
	} else {
		var report *service.Report
		result, report, err = svc.discovery.DiscoverReport(ctx, seeds, threshold, dir)
		if err == nil {
			printReport(cmd.ErrOrStderr(), report, result)
		}
	}
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), func(w io.Writer) error {
		return exporter.Export(result, w)
	})
}

func printReport(w io.Writer, report *service.Report, result *domain.DiscoveryResult) {
	fmt.Fprintf(w, "%s of %s seeds found, %s unique neighbors, %s above threshold (%s)\n",
		humanize.Comma(int64(len(report.Valid))),
		humanize.Comma(int64(len(report.Valid)+len(report.Missing))),
		humanize.Comma(int64(report.UniqueNeighbors)),
		humanize.Comma(int64(result.Len())),
		report.Duration.Round(time.Millisecond))
	if len(report.Missing) > 0 {
		fmt.Fprintf(w, "missing: %s\n", strings.Join(report.Missing, ", "))
	}
	if report.Anomalies > 0 {
		fmt.Fprintf(w, "warning: %d neighbors had no label and were skipped\n", report.Anomalies)
	}
}

func runShared(cmd *cobra.Command, args []string) error {
	seeds, err := readSeeds(args, seedsFile)
	if err != nil {
		return err
	}
	dir, err := domain.ParseDirection(direction)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	domains, err := newQueryServices(sess).intersector.SharedNeighbors(ctx, seeds, minShared, dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, d := range domains {
		fmt.Fprintln(out, d)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s shared %s\n", humanize.Comma(int64(len(domains))), dir)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	seeds, err := readSeeds(args, seedsFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	part, err := newQueryServices(sess).client.ValidateSeeds(ctx, seeds)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(part)
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	client := newQueryServices(sess).client

	out := cmd.OutOrStdout()
	for _, arg := range args {
		if lookupID {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("bad vertex id %q", arg)
			}
			d, ok, err := client.IDToDomain(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				d = "-"
			}
			fmt.Fprintf(out, "%d\t%s\n", id, d)
			continue
		}

		id, found, err := client.DomainToID(ctx, arg)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintf(out, "%s\t-\n", domain.Normalize(arg))
			continue
		}
		fmt.Fprintf(out, "%s\t%d\n", domain.Normalize(arg), id)
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	importer, err := codec.LookupImporter(inputFormat)
	if err != nil {
		return err
	}
	exporter, err := codec.Lookup(outputFormat)
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	result, err := importer.Parse(r)
	if err != nil {
		return fmt.Errorf("read %s result: %w", inputFormat, err)
	}
	return writeOutput(cmd.OutOrStdout(), func(w io.Writer) error {
		return exporter.Export(result, w)
	})
}

func runNeighbors(cmd *cobra.Command, args []string) error {
	dir, err := domain.ParseDirection(direction)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	neighbors, err := newQueryServices(sess).client.Neighbors(ctx, args[0], dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, d := range neighbors {
		fmt.Fprintln(out, d)
	}
	return nil
}

// readSeeds merges argument seeds with those in path. Blank lines and
// lines starting with '#' are ignored.
func readSeeds(args []string, path string) ([]string, error) {
	seeds := append([]string(nil), args...)
	if path != "" {
		var r io.Reader = os.Stdin
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open seeds file: %w", err)
			}
			defer f.Close()
			r = f
		}
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			seeds = append(seeds, line)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read seeds file: %w", err)
		}
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seeds given")
	}
	return seeds, nil
}

// writeOutput sends write to outputPath, or to stdout when unset.
func writeOutput(stdout io.Writer, write func(io.Writer) error) error {
	if outputPath == "" {
		return write(stdout)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
