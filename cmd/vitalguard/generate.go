package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/pkg/dataset"
	"github.com/hed1ad/vitalguard/pkg/io/csv"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		out     string
		seed    int64
		samples int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic training corpus as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg.Dataset
			if cmd.Flags().Changed("samples") {
				cfg.Samples = samples
			}
			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.Training.RandomSeed
			}

			corpus, err := generateCorpus(cfg, seed)
			if err != nil {
				return err
			}

			// Hide Close so the writer never closes the command's stdout.
			var dst io.Writer = struct{ io.Writer }{cmd.OutOrStdout()}
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create corpus file: %w", err)
				}
				dst = f
			}

			w := csv.NewWriter(dst)
			if err := w.WriteAll(corpus.Samples); err != nil {
				_ = w.Close()
				return fmt.Errorf("write corpus: %w", err)
			}
			if err := w.Close(); err != nil {
				return fmt.Errorf("close corpus output: %w", err)
			}

			a.logger.Info("corpus generated",
				zap.String("out", out),
				zap.Int64("seed", seed),
				zap.Int("samples", len(corpus.Samples)),
				zap.Int("injected", len(corpus.Injected)),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "corpus.csv", "output file, or - for stdout")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (default training.seed)")
	cmd.Flags().IntVar(&samples, "samples", 0, "number of samples (default dataset.samples)")
	return cmd
}

func generateCorpus(cfg dataset.Config, seed int64) (dataset.Corpus, error) {
	g, err := dataset.NewGenerator(cfg)
	if err != nil {
		return dataset.Corpus{}, err
	}
	return g.Generate(seed), nil
}
