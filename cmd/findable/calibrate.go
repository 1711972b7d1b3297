package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/findable-hq/findable/internal/calibration"
	"github.com/findable-hq/findable/internal/model"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Analyze and tune prediction quality",
	Long:  "Commands for analyzing calibration samples, optimizing weights and thresholds, and running A/B experiments over configs.",
}

// -- calibrate analyze --

var calibrateAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize prediction accuracy over recent samples",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		samples, err := st.ListCalibrationSamples(ctx, time.Now().Add(-since))
		if err != nil {
			return eris.Wrap(err, "calibrate analyze")
		}

		analysis := calibration.Analyze(samples)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	},
}

// -- calibrate drift --

var calibrateDriftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Check recent prediction quality against a baseline window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		baselineWindow, _ := cmd.Flags().GetDuration("baseline")
		currentWindow, _ := cmd.Flags().GetDuration("current")

		all, err := st.ListCalibrationSamples(ctx, time.Now().Add(-baselineWindow))
		if err != nil {
			return eris.Wrap(err, "calibrate drift")
		}

		cutoff := time.Now().Add(-currentWindow)
		var baseline, current []model.CalibrationSample
		for _, s := range all {
			if s.CreatedAt.Before(cutoff) {
				baseline = append(baseline, s)
			} else {
				current = append(current, s)
			}
		}

		alert := calibration.CheckDrift(calibration.Analyze(baseline), calibration.Analyze(current))
		if alert == nil {
			fmt.Fprintln(os.Stderr, "No drift detected.")
			return nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(alert)
	},
}

// -- calibrate optimize --

var calibrateOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid-search weights and thresholds against stored samples",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		samples, err := st.ListCalibrationSamples(ctx, time.Now().Add(-since))
		if err != nil {
			return eris.Wrap(err, "calibrate optimize")
		}

		active, err := st.GetActiveCalibrationConfig(ctx)
		if err != nil {
			return eris.Wrap(err, "calibrate optimize")
		}

		candidate, err := calibration.Optimize(samples, *active, calibration.OptimizerOptions{
			MinSamples:       cfg.Calibration.MinSamplesPerArm,
			HoldoutFraction:  cfg.Calibration.HoldoutFraction,
			ImprovementFloor: cfg.Calibration.ImprovementFloor,
		})
		if err != nil {
			if eris.Is(err, calibration.ErrNoImprovement) {
				fmt.Fprintln(os.Stderr, "No improvement over the active config; keeping it.")
				return nil
			}
			return eris.Wrap(err, "calibrate optimize")
		}

		if err := st.PutCalibrationConfig(ctx, candidate); err != nil {
			return eris.Wrap(err, "save candidate config")
		}
		zap.L().Info("candidate config saved as draft", zap.String("config_id", candidate.ID))

		if startExp, _ := cmd.Flags().GetBool("experiment"); startExp {
			exp := &model.Experiment{
				ID:                uuid.New().String(),
				ControlConfigID:   active.ID,
				TreatmentConfigID: candidate.ID,
				Status:            model.ExperimentRunning,
				AssignmentSeed:    uuid.New().String(),
				CreatedAt:         time.Now().UTC(),
			}
			if err := st.PutExperiment(ctx, exp); err != nil {
				return eris.Wrap(err, "start experiment")
			}
			zap.L().Info("experiment started",
				zap.String("experiment_id", exp.ID),
				zap.String("control", active.ID),
				zap.String("treatment", candidate.ID),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(candidate)
	},
}

// -- calibrate experiment --

var calibrateExperimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Read out the running A/B experiment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		exp, err := st.GetRunningExperiment(ctx)
		if err != nil {
			return eris.Wrap(err, "calibrate experiment")
		}
		if exp == nil {
			fmt.Fprintln(os.Stderr, "No running experiment.")
			return nil
		}

		samples, err := st.ListCalibrationSamples(ctx, exp.CreatedAt)
		if err != nil {
			return eris.Wrap(err, "calibrate experiment")
		}

		readout := calibration.Evaluate(samples, calibration.ExperimentOptions{
			MinSamplesPerArm: cfg.Calibration.MinSamplesPerArm,
			ImprovementFloor: cfg.Calibration.ImprovementFloor,
		})

		conclude, _ := cmd.Flags().GetBool("conclude")
		if conclude && readout.Winner != "" {
			if err := st.ConcludeExperiment(ctx, exp.ID, readout); err != nil {
				return eris.Wrap(err, "conclude experiment")
			}
			if readout.Winner == calibration.ArmTreatment {
				if err := st.ActivateCalibrationConfig(ctx, exp.TreatmentConfigID); err != nil {
					return eris.Wrap(err, "activate treatment config")
				}
				zap.L().Info("treatment config activated", zap.String("config_id", exp.TreatmentConfigID))
			} else {
				zap.L().Info("control config retained", zap.Bool("demoted", readout.Demote))
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(readout)
	},
}

func init() {
	calibrateAnalyzeCmd.Flags().Duration("since", 30*24*time.Hour, "sample window (e.g. 168h, 720h)")

	calibrateDriftCmd.Flags().Duration("baseline", 60*24*time.Hour, "baseline window")
	calibrateDriftCmd.Flags().Duration("current", 7*24*time.Hour, "current window")

	calibrateOptimizeCmd.Flags().Duration("since", 90*24*time.Hour, "sample window")
	calibrateOptimizeCmd.Flags().Bool("experiment", false, "start an A/B experiment with the candidate as treatment")

	calibrateExperimentCmd.Flags().Bool("conclude", false, "conclude the experiment when a winner is significant")

	calibrateCmd.AddCommand(calibrateAnalyzeCmd)
	calibrateCmd.AddCommand(calibrateDriftCmd)
	calibrateCmd.AddCommand(calibrateOptimizeCmd)
	calibrateCmd.AddCommand(calibrateExperimentCmd)
	rootCmd.AddCommand(calibrateCmd)
}
