// ABOUTME: CLI commands for listing workout logs and personal records.
// ABOUTME: Supports filtering by exercise and limiting results.
package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/workouts"
)

var (
	listExercise string
	listLimit    int

	prsRecompute bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List workout logs",
	Long: `List recent workout logs, newest first.

OUTPUT FORMAT:

  Each line shows: ID  WHEN  EXERCISE  SETS  (NOTE)

  The ID is an 8-character prefix you can use with edit and delete.

EXAMPLES:

  liftlog list                               # Last 20 logs
  liftlog list --exercise barbell-back-squat # One exercise
  liftlog list -n 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := currentUser()
		if err != nil {
			return err
		}

		var logs []*models.WorkoutLog
		if listExercise != "" {
			logs, err = liftApp.Workouts.ListForExercise(uid, listExercise)
		} else {
			logs, err = liftApp.Workouts.List(uid)
		}
		if err != nil {
			return fmt.Errorf("failed to list workouts: %w", err)
		}

		if len(logs) == 0 {
			fmt.Println("No workouts found.")
			return nil
		}

		workouts.SortByTime(logs)
		now := time.Now()
		shown := 0
		for i := len(logs) - 1; i >= 0 && (listLimit <= 0 || shown < listLimit); i-- {
			fmt.Println(formatLog(logs[i], now))
			shown++
		}
		return nil
	},
}

var prsCmd = &cobra.Command{
	Use:     "prs [exercise-id]",
	Aliases: []string{"records"},
	Short:   "Show personal records",
	Long: `Show personal records per exercise: max weight, max reps, max volume
and estimated one-rep max (Epley).

EXAMPLES:

  liftlog prs
  liftlog prs barbell-deadlift
  liftlog prs --recompute        # Rebuild every record from your logs`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := currentUser()
		if err != nil {
			return err
		}

		if prsRecompute {
			recs, err := liftApp.Records.RecomputeAll(cmd.Context(), uid)
			if err != nil {
				return fmt.Errorf("failed to recompute records: %w", err)
			}
			color.Green("✓ Recomputed %d exercises", len(recs))
		}

		var recs []*models.PersonalRecord
		if len(args) == 1 {
			rec, err := liftApp.Records.Recompute(cmd.Context(), uid, args[0])
			if err != nil {
				return fmt.Errorf("failed to compute records: %w", err)
			}
			if !rec.IsEmpty() {
				recs = append(recs, rec)
			}
		} else if recs, err = liftApp.Records.ListForUser(uid); err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}

		if len(recs) == 0 {
			fmt.Println("No personal records yet.")
			return nil
		}

		bold := color.New(color.Bold)
		for _, rec := range recs {
			bold.Println(rec.ExerciseID)
			for _, m := range models.AllPRMetrics {
				slot := rec.Slot(m)
				if slot == nil {
					continue
				}
				fmt.Printf("  %s %s %s\n",
					padRight(metricLabel(m), 14),
					padRight(formatSlot(m, slot), 22),
					faint.Sprint(time.UnixMilli(slot.AchievedAt).Format("2006-01-02")))
			}
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listExercise, "exercise", "e", "", "filter by exercise ID")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "max number of results (0 for all)")
	prsCmd.Flags().BoolVar(&prsRecompute, "recompute", false, "rebuild all records from logs first")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(prsCmd)
}
