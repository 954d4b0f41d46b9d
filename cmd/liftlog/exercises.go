// ABOUTME: CLI commands for the exercise catalog.
// ABOUTME: Lists, searches, reloads and publishes reference exercises.
package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harperreed/liftlog/internal/models"
)

var (
	exMuscle    string
	exBodyPart  string
	exEquipment string
	exLimit     int
)

var exercisesCmd = &cobra.Command{
	Use:     "exercises",
	Aliases: []string{"ex"},
	Short:   "Browse the exercise catalog",
	Long: `Browse the exercise catalog.

The catalog is cached locally. On a cold cache it is fetched from the
server, or from the bundled catalog when offline or when the server has none.

COMMANDS:

  list       List exercises, optionally by muscle, body part or equipment
  search     Case-insensitive name search
  resync     Drop the cache and reload
  publish    Queue the local catalog for upload to the server`,
}

var exListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exercises",
	Long: `List exercises.

EXAMPLES:

  liftlog exercises list
  liftlog exercises list --muscle quads
  liftlog exercises list --equipment dumbbell`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			ex  []*models.Exercise
			err error
		)
		switch {
		case exMuscle != "":
			ex, err = liftApp.Exercises.ByTargetMuscle(exMuscle)
		case exBodyPart != "":
			ex, err = liftApp.Exercises.ByBodyPart(exBodyPart)
		case exEquipment != "":
			ex, err = liftApp.Exercises.ByEquipment(exEquipment)
		default:
			ex, err = liftApp.Exercises.Search("")
		}
		if err != nil {
			return fmt.Errorf("failed to list exercises: %w", err)
		}
		printExercises(ex)
		return nil
	},
}

var exSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search exercises by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, err := liftApp.Exercises.Search(strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("failed to search exercises: %w", err)
		}
		printExercises(ex)
		return nil
	},
}

var exResyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Reload the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, tier, err := liftApp.Exercises.Resync(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to reload exercises: %w", err)
		}
		color.Green("✓ Loaded %d exercises from %s", len(ex), tier)
		return nil
	},
}

var exPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload the local catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := liftApp.Exercises.Publish(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to queue catalog: %w", err)
		}
		color.Green("✓ Catalog queued for upload")
		fmt.Printf("  queue item %d\n", item.ID)
		return nil
	},
}

func printExercises(ex []*models.Exercise) {
	if len(ex) == 0 {
		fmt.Println("No exercises found.")
		return
	}
	for i, e := range ex {
		if exLimit > 0 && i >= exLimit {
			fmt.Println(faint.Sprintf("… %d more", len(ex)-exLimit))
			return
		}
		fmt.Printf("%s %s %s\n",
			padRight(e.ExerciseID, 26),
			padRight(e.Name, 28),
			faint.Sprint(strings.Join(e.TargetMuscles, ", ")))
	}
}

func init() {
	exListCmd.Flags().StringVar(&exMuscle, "muscle", "", "filter by target muscle")
	exListCmd.Flags().StringVar(&exBodyPart, "body-part", "", "filter by body part")
	exListCmd.Flags().StringVar(&exEquipment, "equipment", "", "filter by equipment")
	exercisesCmd.PersistentFlags().IntVarP(&exLimit, "limit", "n", 0, "max number of results")

	exercisesCmd.AddCommand(exListCmd)
	exercisesCmd.AddCommand(exSearchCmd)
	exercisesCmd.AddCommand(exResyncCmd)
	exercisesCmd.AddCommand(exPublishCmd)
	rootCmd.AddCommand(exercisesCmd)
}
