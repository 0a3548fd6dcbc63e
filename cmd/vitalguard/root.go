package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hed1ad/vitalguard/internal/config"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	configPath string
	v          *viper.Viper
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "vitalguard",
		Short:        "Vital-sign anomaly detection",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to configuration file")

	root.AddCommand(
		newGenerateCmd(a),
		newTrainCmd(a),
		newServeCmd(a),
		newPredictCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init() error {
	v, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(v)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	a.v = v
	a.cfg = cfg
	a.logger = logger

	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("configuration loaded", zap.String("file", used))
	}
	return nil
}
