package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/pkg/dataset"
	"github.com/hed1ad/vitalguard/pkg/io/csv"
	"github.com/hed1ad/vitalguard/pkg/model"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		out        string
		seed       int64
		corpusPath string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the anomaly model and write the artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := a.logger.Named("train")
			if !cmd.Flags().Changed("out") {
				out = a.cfg.Model.Path
			}
			trainCfg := a.cfg.Training
			if cmd.Flags().Changed("seed") {
				trainCfg.RandomSeed = seed
			}

			var corpus dataset.Corpus
			var err error
			if corpusPath != "" {
				corpus, err = readCorpus(corpusPath, trainCfg.RandomSeed)
			} else {
				corpus, err = generateCorpus(a.cfg.Dataset, trainCfg.RandomSeed)
			}
			if err != nil {
				return err
			}

			m, err := model.Fit(corpus, trainCfg)
			if err != nil {
				return err
			}
			if err := m.Save(out); err != nil {
				return err
			}

			info := m.Info()
			logger.Info("model trained",
				zap.String("out", out),
				zap.String("run_id", info.RunID),
				zap.Int("samples", info.CorpusSize),
				zap.Int("flagged", info.Training.Flagged),
				zap.Float64("threshold", info.Threshold),
				zap.Int64("seed", info.Seed),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "model saved to %s (%d of %d training samples flagged as anomalies)\n",
				out, info.Training.Flagged, info.CorpusSize)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "artifact path (default model.path)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for corpus and forest (default training.seed)")
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "train on this CSV corpus instead of a generated one")
	return cmd
}

func readCorpus(path string, seed int64) (dataset.Corpus, error) {
	r, err := csv.NewReader(path, csv.WithHeader(true))
	if err != nil {
		return dataset.Corpus{}, fmt.Errorf("open corpus: %w", err)
	}
	defer r.Close()

	samples, err := r.Read()
	if err != nil {
		return dataset.Corpus{}, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return dataset.Corpus{Seed: seed, Samples: samples}, nil
}
