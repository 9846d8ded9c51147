package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	ic "github.com/vineetmishra237/smart-irrigation/internal/services/irrigation-controller"
)

var modelProbe []float64

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Train the discharge model and report its fit",
	RunE: func(cmd *cobra.Command, args []string) error {
		mc := modelConfig(cfg.Model)
		p, err := ic.TrainDischargeModel(mc)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "seed=%d samples=%d trees=%d train_r2=%.4f\n", mc.Seed, mc.Samples, mc.Estimators, p.TrainingR2())

		if len(modelProbe) == 0 {
			return nil
		}
		if len(modelProbe) != ic.NumFeatures {
			return eris.Errorf("--probe needs %d values: rainfall,temperature,moisture,valve,soil", ic.NumFeatures)
		}
		var v ic.FeatureVector
		copy(v[:], modelProbe)
		raw, err := p.Predict(v)
		if err != nil {
			return err
		}
		rate, clamped := ic.ClampRate(raw)
		fmt.Fprintf(w, "probe=%v raw=%.4f rate=%.2f clamped=%t\n", modelProbe, raw, rate, clamped)
		return nil
	},
}

func init() {
	modelCmd.Flags().Float64SliceVar(&modelProbe, "probe", nil, "feature vector to predict: rainfall,temperature,moisture,valve,soil")
	rootCmd.AddCommand(modelCmd)
}
