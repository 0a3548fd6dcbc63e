package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/hed1ad/vitalguard/pkg/predict"
)

func newPredictCmd(a *app) *cobra.Command {
	var (
		modelPath   string
		heartRate   int
		bloodOxygen int
		activity    string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a single reading with a saved model and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if modelPath == "" {
				modelPath = a.cfg.Model.Path
			}

			svc := predict.New(a.logger.Named("predict"), a.cfg.Risk)
			if err := svc.Load(modelPath); err != nil {
				return err
			}

			req := predict.Request{ActivityLevel: activity}
			if cmd.Flags().Changed("heart-rate") {
				req.HeartRate = &heartRate
			}
			if cmd.Flags().Changed("blood-oxygen") {
				req.BloodOxygen = &bloodOxygen
			}

			res, err := svc.Predict(req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&modelPath, "model", "", "artifact path (default model.path)")
	cmd.Flags().IntVar(&heartRate, "heart-rate", 0, "heart rate in bpm")
	cmd.Flags().IntVar(&bloodOxygen, "blood-oxygen", 0, "blood oxygen saturation in percent")
	cmd.Flags().StringVar(&activity, "activity", "", "activity level: low, moderate or high")
	return cmd
}
