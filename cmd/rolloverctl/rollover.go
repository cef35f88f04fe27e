package main

import (
	"github.com/spf13/cobra"

	rollover "esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
)

type rolloverFlags struct {
	source      string
	name        string
	start       string
	end         string
	mode        string
	scope       string
	actor       string
	structure   bool
	disclosures bool
	dataValues  bool
	attachments bool
	carryGaps   bool
	dueShift    int
	overrides   []string
	mappings    []string
}

func (f *rolloverFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.source, "source", "", "source period id")
	cmd.Flags().StringVar(&f.name, "name", "", "target period name")
	cmd.Flags().StringVar(&f.start, "start", "", "target start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "target end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "target mode (simplified, extended); inherited when empty")
	cmd.Flags().StringVar(&f.scope, "scope", "", "target scope; inherited when empty")
	cmd.Flags().StringVar(&f.actor, "actor", "", "directory user performing the rollover")
	cmd.Flags().BoolVar(&f.structure, "copy-structure", true, "copy section structure")
	cmd.Flags().BoolVar(&f.disclosures, "copy-disclosures", true, "copy gaps, assumptions and remediation plans")
	cmd.Flags().BoolVar(&f.dataValues, "copy-data-values", true, "copy data points")
	cmd.Flags().BoolVar(&f.attachments, "copy-attachments", false, "copy evidence references")
	cmd.Flags().BoolVar(&f.carryGaps, "carry-forward-gaps", false, "relink gaps and assumptions to the new data points")
	cmd.Flags().IntVar(&f.dueShift, "due-date-shift-days", 0, "days added to remediation action due dates")
	cmd.Flags().StringSliceVar(&f.overrides, "override", nil, "rule override data_type=copy|reset|copy_as_draft (repeatable)")
	cmd.Flags().StringSliceVar(&f.mappings, "map", nil, "manual section mapping SOURCE=TARGET catalog code (repeatable)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	_ = cmd.MarkFlagRequired("actor")
}

func (f *rolloverFlags) request() (rollover.RolloverRequest, error) {
	sourceID, err := id.ParsePeriodID(f.source)
	if err != nil {
		return rollover.RolloverRequest{}, err
	}
	start, err := parseDate("start", f.start)
	if err != nil {
		return rollover.RolloverRequest{}, err
	}
	end, err := parseDate("end", f.end)
	if err != nil {
		return rollover.RolloverRequest{}, err
	}
	overrides, err := parseOverrides(f.overrides)
	if err != nil {
		return rollover.RolloverRequest{}, err
	}
	mappings, err := parseMappings(f.mappings)
	if err != nil {
		return rollover.RolloverRequest{}, err
	}
	return rollover.RolloverRequest{
		SourcePeriodID: sourceID,
		Target: rollover.TargetPeriodSpec{
			Name:      f.name,
			StartDate: start,
			EndDate:   end,
			Mode:      f.mode,
			Scope:     f.scope,
		},
		Options: rollover.RolloverOptions{
			CopyStructure:                  f.structure,
			CopyDisclosures:                f.disclosures,
			CopyDataValues:                 f.dataValues,
			CopyAttachments:                f.attachments,
			CarryForwardGapsAndAssumptions: f.carryGaps,
			DueDateAdjustmentDays:          f.dueShift,
		},
		RuleOverrides:  overrides,
		ManualMappings: mappings,
		PerformedBy:    id.UserID(f.actor),
	}, nil
}

func rolloverCmd() *cobra.Command {
	var flags rolloverFlags
	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Roll a reporting period forward into a new period",
		Long: `Create a new reporting period from an existing one. Sections are matched by
catalog code, content is copied according to the options and rollover rules,
and the reconciliation report is printed as JSON. The operation is
all-or-nothing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(a)
			if err := requireDatabase(a, "rollover"); err != nil {
				return err
			}

			result, err := a.Rollover.Execute(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	flags.register(cmd)
	return cmd
}

func previewCmd() *cobra.Command {
	var flags rolloverFlags
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the reconciliation a rollover would produce without writing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, _, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(a)

			preview, err := a.Rollover.Preview(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), preview)
		},
	}
	flags.register(cmd)
	return cmd
}
