// ABOUTME: CLI commands for logging, editing and deleting workout logs.
// ABOUTME: Writes go to the local store first and are queued for upload.
package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/storage"
)

var (
	logAt   string
	logNote string

	editAt       string
	editNote     string
	editExercise string
)

var logCmd = &cobra.Command{
	Use:     "log <exercise-id> <sets...>",
	Aliases: []string{"add", "a"},
	Short:   "Log sets for an exercise",
	Long: `Log sets for one exercise.

SET NOTATION:

  100x5      100 (kg or lb) for 5 reps
  110x3@8    with RPE 8
  60x10*3    three identical sets
  bwx12      bodyweight

Sets may be separated by spaces or commas.

EXAMPLES:

  liftlog log barbell-back-squat 100x5 110x5 120x3@8
  liftlog log pull-up bwx10*3 --note "strict"
  liftlog log barbell-bench-press 80x8,85x6 --at "yesterday 6pm"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := currentUser(); err != nil {
			return err
		}
		exerciseID := args[0]
		if _, err := liftApp.Exercises.Get(exerciseID); err != nil {
			if storage.IsNotFound(err) {
				return fmt.Errorf("unknown exercise: %s (try 'liftlog exercises search')", exerciseID)
			}
			return err
		}

		sets, err := parseSets(args[1:])
		if err != nil {
			return err
		}

		l := models.NewWorkoutLog(exerciseID, sets...)
		if logAt != "" {
			t, err := parseTime(logAt, time.Now())
			if err != nil {
				return fmt.Errorf("invalid timestamp: %w", err)
			}
			l.WithTime(t)
		}
		if logNote != "" {
			l.WithNote(logNote)
		}

		saved, err := liftApp.Workouts.LogWorkout(cmd.Context(), l)
		if err != nil {
			return fmt.Errorf("failed to log workout: %w", err)
		}

		color.Green("✓ Logged %s", saved.ExerciseID)
		fmt.Printf("  %s %s  volume %.1f\n", faint.Sprint(shortID(saved.ID)), storage.FormatSets(saved.Sets), saved.Volume())
		if !liftApp.Monitor.Online() {
			fmt.Println(faint.Sprint("  offline: queued for upload"))
		}
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id> [sets...]",
	Short: "Edit a workout log",
	Long: `Edit a workout log. Sets given replace all existing sets.

EXAMPLES:

  liftlog edit 1a2b3c4d 100x5 105x5
  liftlog edit 1a2b3c4d --note "belt"
  liftlog edit 1a2b3c4d --exercise barbell-front-squat`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := currentUser()
		if err != nil {
			return err
		}
		existing, err := resolveLogID(uid, args[0])
		if err != nil {
			return err
		}

		l := existing.Clone()
		if len(args) > 1 {
			if l.Sets, err = parseSets(args[1:]); err != nil {
				return err
			}
		}
		if editAt != "" {
			t, err := parseTime(editAt, time.Now())
			if err != nil {
				return fmt.Errorf("invalid timestamp: %w", err)
			}
			l.WithTime(t)
		}
		if cmd.Flags().Changed("note") {
			if editNote == "" {
				l.Note = nil
			} else {
				l.WithNote(editNote)
			}
		}
		if editExercise != "" {
			if _, err := liftApp.Exercises.Get(editExercise); err != nil {
				return fmt.Errorf("unknown exercise: %s", editExercise)
			}
			l.ExerciseID = editExercise
		}

		saved, err := liftApp.Workouts.UpdateWorkout(cmd.Context(), l)
		if err != nil {
			return fmt.Errorf("failed to update workout: %w", err)
		}
		color.Green("✓ Updated %s", shortID(saved.ID))
		fmt.Println(" ", formatLog(saved, time.Now()))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"del", "rm"},
	Short:   "Delete a workout log",
	Long: `Delete a workout log by its ID or ID prefix.

Online, the server copy is deleted first. If that fails the local copy is
kept and the delete is queued. Offline, the log is removed locally and the
delete is queued.

EXAMPLES:

  liftlog delete 1a2b3c4d
  liftlog rm 1a2b`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := currentUser()
		if err != nil {
			return err
		}
		l, err := resolveLogID(uid, args[0])
		if err != nil {
			return err
		}

		res, err := liftApp.Workouts.DeleteWorkout(cmd.Context(), l.ID)
		if err != nil {
			return fmt.Errorf("failed to delete workout: %w", err)
		}

		switch {
		case res.Local && !res.Queued:
			color.Yellow("✗ Deleted %s", l.ExerciseID)
		case res.Local:
			color.Yellow("✗ Deleted %s locally; server delete queued", l.ExerciseID)
		default:
			color.Yellow("⚠ Server delete failed; kept %s locally and queued a retry", l.ExerciseID)
		}
		fmt.Printf("  %s %s\n", faint.Sprint(shortID(l.ID)), storage.FormatSets(l.Sets))
		return nil
	},
}

func init() {
	logCmd.Flags().StringVar(&logAt, "at", "", `when the sets were done ("2024-12-14 07:00", "yesterday 6pm")`)
	logCmd.Flags().StringVar(&logNote, "note", "", "note for the log")

	editCmd.Flags().StringVar(&editAt, "at", "", "new timestamp")
	editCmd.Flags().StringVar(&editNote, "note", "", "new note (empty clears it)")
	editCmd.Flags().StringVar(&editExercise, "exercise", "", "move the log to another exercise")

	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
}
