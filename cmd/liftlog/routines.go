// ABOUTME: CLI commands for workout routines and guided sessions.
// ABOUTME: Routine writes need the server; listing falls back to the cache.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/routines"
	"github.com/harperreed/liftlog/internal/storage"
)

var routineDescription string

var routinesCmd = &cobra.Command{
	Use:     "routines",
	Aliases: []string{"r"},
	Short:   "Manage workout routines",
	Long: `Manage workout routines.

Routines are stored on the server and cached locally. Listing works offline;
creating, editing and deleting need a connection.

COMMANDS:

  list        List routines, most recently updated first
  create      Create a routine from exercise IDs
  delete      Delete a routine
  duplicate   Copy a routine
  start       Run a guided session through a routine`,
}

var routinesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routines",
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, err := currentUser()
		if err != nil {
			return err
		}
		rs, src, err := liftApp.Routines.FetchUserRoutines(cmd.Context(), uid)
		if err != nil {
			return fmt.Errorf("failed to list routines: %w", err)
		}
		if len(rs) == 0 {
			fmt.Println("No routines found.")
			return nil
		}
		if src == routines.SourceCache {
			fmt.Println(faint.Sprint("(from cache)"))
		}
		now := time.Now()
		for _, r := range rs {
			used := "never used"
			if r.LastUsed != nil {
				used = "used " + humanize.RelTime(time.UnixMilli(*r.LastUsed), now, "ago", "from now")
			}
			fmt.Printf("%s %s %s %s\n",
				faint.Sprint(shortID(r.ID)),
				padRight(r.Name, 24),
				padRight(fmt.Sprintf("%d exercises", len(r.Exercises)), 13),
				faint.Sprint(used))
		}
		return nil
	},
}

var routinesCreateCmd = &cobra.Command{
	Use:   "create <name> <exercise-id...>",
	Short: "Create a routine",
	Long: `Create a routine from exercise IDs, in order.

EXAMPLES:

  liftlog routines create "Push A" barbell-bench-press overhead-press triceps-pushdown
  liftlog routines create "Legs" barbell-back-squat romanian-deadlift --description "heavy day"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args[1:] {
			if _, err := liftApp.Exercises.Get(id); err != nil {
				return fmt.Errorf("unknown exercise: %s", id)
			}
		}
		r := models.NewRoutine(args[0], args[1:]...)
		if routineDescription != "" {
			r.WithDescription(routineDescription)
		}
		saved, err := liftApp.Routines.Create(cmd.Context(), r)
		if err != nil {
			return fmt.Errorf("failed to create routine: %w", err)
		}
		color.Green("✓ Created %s", saved.Name)
		fmt.Printf("  %s %d exercises\n", faint.Sprint(shortID(saved.ID)), len(saved.Exercises))
		return nil
	},
}

var routinesDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a routine",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := resolveRoutine(args[0])
		if err != nil {
			return err
		}
		if err := liftApp.Routines.Delete(cmd.Context(), r.ID); err != nil {
			return fmt.Errorf("failed to delete routine: %w", err)
		}
		color.Yellow("✗ Deleted %s", r.Name)
		return nil
	},
}

var routinesDuplicateCmd = &cobra.Command{
	Use:     "duplicate <id>",
	Aliases: []string{"dup", "cp"},
	Short:   "Copy a routine",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := resolveRoutine(args[0])
		if err != nil {
			return err
		}
		dup, err := liftApp.Routines.Duplicate(cmd.Context(), r.ID)
		if err != nil {
			return fmt.Errorf("failed to duplicate routine: %w", err)
		}
		color.Green("✓ Created %s", dup.Name)
		fmt.Printf("  %s\n", faint.Sprint(shortID(dup.ID)))
		return nil
	},
}

var routinesStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Run a guided session",
	Long: `Walk through a routine one exercise at a time.

At each prompt enter sets in log notation (100x5 110x3@8), press enter to
skip the exercise, or type q to stop. Sets are logged as you go.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := resolveRoutine(args[0])
		if err != nil {
			return err
		}
		return runSession(cmd, r, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// runSession drives the session tracker from line-oriented input.
func runSession(cmd *cobra.Command, r *models.WorkoutRoutine, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	if _, err := liftApp.Sessions.Start(ctx, r.ID); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	fmt.Fprintf(out, "Starting %s (%d exercises)\n", r.Name, len(r.Exercises))

	scanner := bufio.NewScanner(in)
	for {
		_, ex, err := liftApp.Sessions.Current()
		if err != nil {
			return err
		}
		if ex == nil {
			break
		}

		fmt.Fprintf(out, "\n%s%s\n> ", color.New(color.Bold).Sprint(ex.ExerciseID), suggestion(ex))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "q" || line == "quit" {
			liftApp.Sessions.Abandon()
			fmt.Fprintln(out, "Session stopped. Logged sets are kept.")
			return nil
		}
		if line != "" {
			sets, err := parseSets([]string{line})
			if err != nil {
				fmt.Fprintln(out, color.RedString("  %v", err))
				continue
			}
			saved, err := liftApp.Sessions.RecordLog(ctx, sets...)
			if err != nil {
				return fmt.Errorf("failed to log sets: %w", err)
			}
			fmt.Fprintf(out, "  %s %s\n", color.GreenString("✓"), storage.FormatSets(saved.Sets))
		}
		if _, err := liftApp.Sessions.Advance(); err != nil && !errors.Is(err, routines.ErrSessionComplete) {
			return err
		}
	}

	s, err := liftApp.Sessions.Finish()
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(out, "\n✓ Finished %s: %d of %d exercises logged\n",
		r.Name, len(s.CompletedExercises), len(r.Exercises))
	return nil
}

func suggestion(ex *models.RoutineExercise) string {
	var parts []string
	if ex.SuggestedSets != nil && ex.SuggestedReps != nil {
		parts = append(parts, fmt.Sprintf("%dx%d", *ex.SuggestedSets, *ex.SuggestedReps))
	}
	if ex.SuggestedWeight != nil {
		parts = append(parts, fmt.Sprintf("@ %g", *ex.SuggestedWeight))
	}
	if len(parts) == 0 {
		return ""
	}
	return faint.Sprintf(" (%s)", strings.Join(parts, " "))
}

// resolveRoutine expands an ID prefix against the cached routines.
func resolveRoutine(prefix string) (*models.WorkoutRoutine, error) {
	uid, err := currentUser()
	if err != nil {
		return nil, err
	}
	if r, err := liftApp.Routines.Get(prefix); err == nil && r.UID == uid {
		return r, nil
	}
	rs, err := liftApp.Routines.GetRoutinesFromCache(uid)
	if err != nil {
		return nil, err
	}
	var match *models.WorkoutRoutine
	for _, r := range rs {
		if strings.HasPrefix(r.ID, prefix) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous prefix %s: matches multiple routines", prefix)
			}
			match = r
		}
	}
	if match == nil {
		return nil, fmt.Errorf("routine not found: %s", prefix)
	}
	return match, nil
}

func init() {
	routinesCreateCmd.Flags().StringVar(&routineDescription, "description", "", "routine description")

	routinesCmd.AddCommand(routinesListCmd)
	routinesCmd.AddCommand(routinesCreateCmd)
	routinesCmd.AddCommand(routinesDeleteCmd)
	routinesCmd.AddCommand(routinesDuplicateCmd)
	routinesCmd.AddCommand(routinesStartCmd)
	rootCmd.AddCommand(routinesCmd)
}
