package main

import (
	"fmt"
	"os"

	"github.com/pbaille/workhours/internal/scoring"
	"github.com/pbaille/workhours/internal/sheet"
	"github.com/spf13/cobra"
)

func newEngine() (*scoring.Engine, func(), error) {
	log, err := getLogger()
	if err != nil {
		return nil, nil, err
	}
	s, err := getStore()
	if err != nil {
		return nil, nil, err
	}
	return scoring.New(s, log), func() { s.Close(); log.Sync() }, nil
}

func scoresCmd() *cobra.Command {
	var by string
	var ff filterFlags

	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show weighted scores per client, technician or group",
		RunE: func(cmd *cobra.Command, args []string) error {
			groupBy, err := scoring.ParseGroupBy(by)
			if err != nil {
				return err
			}
			filter, err := ff.filter()
			if err != nil {
				return err
			}

			engine, done, err := newEngine()
			if err != nil {
				return err
			}
			defer done()

			scores, err := engine.ComputeScores(cmd.Context(), groupBy, filter)
			if err != nil {
				return err
			}

			if len(scores) == 0 {
				fmt.Println("No records in range.")
				return nil
			}
			for _, s := range scores {
				fmt.Printf("%10.1f  avg %6.0f  %4d records  %7.1fh  %s\n",
					s.TotalScore, s.AverageScore, s.Count, s.Hours, s.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", string(scoring.ByClient), "grouping (client, technician, group)")
	ff.bind(cmd)
	return cmd
}

func efficiencyCmd() *cobra.Command {
	var ff filterFlags

	cmd := &cobra.Command{
		Use:   "efficiency",
		Short: "Show value per hour per client and flag clients above the threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.filter()
			if err != nil {
				return err
			}

			engine, done, err := newEngine()
			if err != nil {
				return err
			}
			defer done()

			eff, err := engine.ComputeEfficiency(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if eff.ThresholdDefined {
				fmt.Printf("Threshold: %.2f\n", eff.Threshold)
			} else {
				fmt.Println("Threshold: none (no client weights assigned)")
			}
			for _, c := range eff.Clients {
				mark := " "
				if c.OverThreshold {
					mark = "!"
				}
				fmt.Printf("%s %6.2f  %7.1fh  %s\n", mark, c.Ratio, c.Hours, c.ClientName)
			}
			return nil
		},
	}

	ff.bind(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	var by string
	var ff filterFlags

	cmd := &cobra.Command{
		Use:   "export [file.xlsx]",
		Short: "Write score and efficiency reports to a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupBy, err := scoring.ParseGroupBy(by)
			if err != nil {
				return err
			}
			filter, err := ff.filter()
			if err != nil {
				return err
			}

			engine, done, err := newEngine()
			if err != nil {
				return err
			}
			defer done()

			scores, err := engine.ComputeScores(cmd.Context(), groupBy, filter)
			if err != nil {
				return err
			}
			eff, err := engine.ComputeEfficiency(cmd.Context(), filter)
			if err != nil {
				return err
			}

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := sheet.ExportScores(f, scores, eff); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&by, "by", string(scoring.ByClient), "grouping (client, technician, group)")
	ff.bind(cmd)
	return cmd
}
