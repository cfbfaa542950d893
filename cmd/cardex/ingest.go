package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/cardex/internal/repository/batchsource"
	intakeuc "github.com/kailas-cloud/cardex/internal/usecase/intake"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "ingest <file|dir>...",
		Short: "Enrich and store local batch files",
		Long: `Reads batch files (JSON arrays of card records), enriches every card and
upserts it into the record store. A directory argument ingests every *.json
file in it. Consumed files are removed unless --keep is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts, args, keep)
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "keep batch files after ingesting them")
	return cmd
}

func runIngest(cmd *cobra.Command, opts *rootOptions, paths []string, keep bool) error {
	sources, err := localSources(paths, keep)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()

	enricher := a.enrichService()
	total := 0
	for _, src := range sources {
		n, err := intakeuc.New(src, enricher, a.logger).Drain(ctx)
		total += n
		if err != nil {
			return fmt.Errorf("ingest %s: %w", src, err)
		}
	}
	cmd.Printf("Ingested %d batch file(s).\n", total)
	return nil
}

// localSources maps each argument to a directory or single-file source.
func localSources(paths []string, keep bool) ([]*batchsource.Local, error) {
	sources := make([]*batchsource.Local, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		src := batchsource.NewFiles(p)
		if info.IsDir() {
			src = batchsource.NewDir(p)
		}
		if keep {
			src.KeepFiles()
		}
		sources = append(sources, src)
	}
	return sources, nil
}
