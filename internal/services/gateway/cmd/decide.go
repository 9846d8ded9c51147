package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	ic "github.com/vineetmishra237/smart-irrigation/internal/services/irrigation-controller"
)

var (
	decideValve  string
	decideSoil   string
	decideArea   string
	decideOutput string
	decideWait   time.Duration
)

// decideOutcome is what the decide command prints.
type decideOutcome struct {
	Steps    []string     `json:"steps" yaml:"steps"`
	Decision *ic.Decision `json:"decision,omitempty" yaml:"decision,omitempty"`
	Error    string       `json:"error,omitempty" yaml:"error,omitempty"`
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Run one irrigation decision and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		if decideOutput != "json" && decideOutput != "yaml" {
			return eris.Errorf("unknown --output %q (json or yaml)", decideOutput)
		}
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		journalDone := make(chan struct{})
		jctx, stopJournal := context.WithCancel(context.Background())
		if env.Journal != nil {
			go func() { _ = env.Journal.Run(jctx); close(journalDone) }()
		} else {
			close(journalDone)
		}

		if env.mqttMoisture != nil {
			go func() { _ = env.mqttMoisture.Start(ctx) }()
			waitForReading(ctx, env.mqttMoisture, decideWait)
		}

		trace, d, runErr := env.Pipeline.Run(ctx, ic.DecisionRequest{
			ValveDiameter: decideValve,
			SoilType:      decideSoil,
			FieldArea:     decideArea,
		})
		stopJournal()
		<-journalDone

		out := decideOutcome{Steps: trace.Steps(), Decision: d}
		if runErr != nil {
			out.Error = ic.UserMessage(runErr)
		}
		if err := renderOutcome(cmd.OutOrStdout(), decideOutput, out); err != nil {
			return err
		}
		return runErr
	},
}

func waitForReading(ctx context.Context, m *ic.MQTTMoisture, wait time.Duration) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, ok := m.Latest(); ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			zap.L().Warn("decide: no moisture reading yet", zap.Duration("waited", wait))
			return
		case <-tick.C:
		}
	}
}

func renderOutcome(w io.Writer, format string, out decideOutcome) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(out), "encode json")
	}
}

func init() {
	decideCmd.Flags().StringVar(&decideValve, "valve", "", "valve diameter")
	decideCmd.Flags().StringVar(&decideSoil, "soil", "", "soil type code (1 sandy, 2 loamy, 3 clay)")
	decideCmd.Flags().StringVar(&decideArea, "area", "", "field area in m²")
	decideCmd.Flags().StringVarP(&decideOutput, "output", "o", "json", "output format: json or yaml")
	decideCmd.Flags().DurationVar(&decideWait, "wait", 5*time.Second, "how long to wait for the first MQTT moisture reading")
	_ = decideCmd.MarkFlagRequired("valve")
	_ = decideCmd.MarkFlagRequired("soil")
	_ = decideCmd.MarkFlagRequired("area")
	rootCmd.AddCommand(decideCmd)
}
