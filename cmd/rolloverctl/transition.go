package main

import (
	"github.com/spf13/cobra"

	"esgledger/internal/gapstatus"
	"esgledger/internal/reporting/models"
	id "esgledger/pkg/domain"
)

func transitionCmd() *cobra.Command {
	var (
		dataPoint  string
		from       string
		to         string
		actor      string
		note       string
		value      string
		evidence   string
		estType    string
		estMethod  string
		confidence string
	)
	cmd := &cobra.Command{
		Use:   "transition",
		Short: "Move a data point between missing, estimated and provided",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dpID, err := id.ParseDataPointID(dataPoint)
			if err != nil {
				return err
			}
			expected, err := models.ParseGapStatus(from)
			if err != nil {
				return err
			}
			target, err := models.ParseGapStatus(to)
			if err != nil {
				return err
			}
			req := gapstatus.TransitionRequest{
				DataPointID:  dpID,
				ExpectedFrom: expected,
				Change: gapstatus.Change{
					Target: target,
					Actor:  id.UserID(actor),
					Note:   note,
					Value:  value,
				},
			}
			if evidence != "" {
				evID, err := id.ParseEvidenceID(evidence)
				if err != nil {
					return err
				}
				req.EvidenceID = &evID
			}
			if target == models.GapStatusEstimated {
				et, err := models.ParseEstimateType(estType)
				if err != nil {
					return err
				}
				cl, err := models.ParseConfidenceLevel(confidence)
				if err != nil {
					return err
				}
				req.Estimate = &gapstatus.EstimateFields{EstimateType: et, EstimateMethod: estMethod, ConfidenceLevel: cl}
			}

			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireDatabase(a, "transition"); err != nil {
				return err
			}

			dp, err := a.GapStatus.Transition(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), dp)
		},
	}
	cmd.Flags().StringVar(&dataPoint, "data-point", "", "data point id")
	cmd.Flags().StringVar(&from, "from", "", "status the caller last observed")
	cmd.Flags().StringVar(&to, "to", "", "target status")
	cmd.Flags().StringVar(&actor, "actor", "", "directory user performing the transition")
	cmd.Flags().StringVar(&note, "note", "", "change note (required when moving back to missing)")
	cmd.Flags().StringVar(&value, "value", "", "reported value (required for provided)")
	cmd.Flags().StringVar(&evidence, "evidence", "", "supporting evidence id")
	cmd.Flags().StringVar(&estType, "estimate-type", "", "point, range, proxy or extrapolated")
	cmd.Flags().StringVar(&estMethod, "estimate-method", "", "how the estimate was derived")
	cmd.Flags().StringVar(&confidence, "confidence", "", "low, medium or high")
	for _, name := range []string{"data-point", "from", "to", "actor"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
