package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/darrellrafa/Nutribot/internal/domain"
	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
	"github.com/darrellrafa/Nutribot/internal/nutrition"
)

func newNutritionCommand(_ *cliState) *cobra.Command {
	var (
		age        int
		gender     string
		height     float64
		weight     float64
		activity   string
		goal       string
		macroSplit string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "nutrition",
		Short: "Compute BMR, TDEE, calorie target and macros for a profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, ok := domain.ParseGender(gender)
			if !ok {
				return apperrors.Validationf("unknown gender %q", gender)
			}
			level, ok := domain.ParseActivityLevel(activity)
			if !ok {
				return apperrors.Validationf("unknown activity level %q", activity)
			}
			summary, err := nutrition.ComputeSummary(nutrition.Input{
				WeightKG:      weight,
				HeightCM:      height,
				Age:           age,
				Gender:        g,
				ActivityLevel: level,
				Goal:          goal,
				MacroSplit:    nutrition.ParseMacroSplit(macroSplit),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			fmt.Fprintf(out, "BMR:            %.1f kcal\n", summary.BMR)
			fmt.Fprintf(out, "TDEE:           %.1f kcal\n", summary.TDEE)
			fmt.Fprintf(out, "Target:         %.1f kcal (%s, %+d)\n", summary.TargetCalories, summary.GoalType, summary.Adjustment)
			fmt.Fprintf(out, "Macros (%s): protein %.1fg (%d%%), carbs %.1fg (%d%%), fat %.1fg (%d%%)\n",
				summary.MacroSplit,
				summary.Macros.ProteinG, summary.Macros.Percentages.Protein,
				summary.Macros.CarbsG, summary.Macros.Percentages.Carbs,
				summary.Macros.FatG, summary.Macros.Percentages.Fat)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&age, "age", 0, "age in years")
	flags.StringVar(&gender, "gender", "", "male or female")
	flags.Float64Var(&height, "height", 0, "height in cm")
	flags.Float64Var(&weight, "weight", 0, "weight in kg")
	flags.StringVar(&activity, "activity", "sedentary", "sedentary, lightly_active, moderately_active, very_active, extremely_active")
	flags.StringVar(&goal, "goal", "maintain", "goal, e.g. \"turun berat badan\" or \"gain muscle\"")
	flags.StringVar(&macroSplit, "macro-split", string(domain.MacroBalanced), "balanced, high_protein or low_carb")
	flags.BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("age")
	_ = cmd.MarkFlagRequired("gender")
	_ = cmd.MarkFlagRequired("height")
	_ = cmd.MarkFlagRequired("weight")
	return cmd
}
