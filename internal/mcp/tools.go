// ABOUTME: MCP tool implementations for liftlog.
// ABOUTME: Logs and deletes workouts, reads records, exercises and routines, drives sync.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/liftlog/internal/identity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/queue"
	"github.com/harperreed/liftlog/internal/routines"
	"github.com/harperreed/liftlog/internal/storage"
	"github.com/harperreed/liftlog/internal/workouts"
)

const defaultLimit = 20

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "log_workout",
		Description: "Log sets for one exercise. Works offline; the log is queued for upload.",
	}, s.handleLogWorkout)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_workouts",
		Description: "List recent workout logs, newest first, optionally for one exercise",
	}, s.handleListWorkouts)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_workout",
		Description: "Delete a workout log by ID",
	}, s.handleDeleteWorkout)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_personal_records",
		Description: "Get personal records, for one exercise or all of them",
	}, s.handleGetPersonalRecords)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_exercises",
		Description: "Search the exercise catalog by name, target muscle, body part or equipment",
	}, s.handleListExercises)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_routines",
		Description: "List saved routines, most recently updated first",
	}, s.handleListRoutines)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "sync_now",
		Description: "Upload queued changes and reconcile logs with the server",
	}, s.handleSyncNow)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "queue_status",
		Description: "Show pending and failed uploads",
	}, s.handleQueueStatus)
}

// Tool input/output types

type setInput struct {
	Weight float64  `json:"weight" jsonschema:"Weight lifted"`
	Reps   int      `json:"reps" jsonschema:"Repetitions"`
	RPE    *float64 `json:"rpe,omitempty" jsonschema:"Rate of perceived exertion (1-10)"`
}

type logWorkoutInput struct {
	ExerciseID  string     `json:"exercise_id" jsonschema:"Exercise ID from list_exercises"`
	Sets        []setInput `json:"sets" jsonschema:"Sets performed"`
	PerformedAt string     `json:"performed_at,omitempty" jsonschema:"Timestamp (ISO 8601), defaults to now"`
	Note        string     `json:"note,omitempty" jsonschema:"Optional note"`
}

type logOutput struct {
	ID         string  `json:"id"`
	ExerciseID string  `json:"exercise_id"`
	Sets       string  `json:"sets"`
	Volume     float64 `json:"volume"`
	Message    string  `json:"message"`
}

type listWorkoutsInput struct {
	ExerciseID string `json:"exercise_id,omitempty" jsonschema:"Filter by exercise ID"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type listWorkoutsOutput struct {
	Logs    []*models.WorkoutLog `json:"logs"`
	Message string               `json:"message,omitempty"`
}

type deleteWorkoutInput struct {
	ID string `json:"id" jsonschema:"Workout log ID"`
}

type deleteOutput struct {
	Local   bool   `json:"local"`
	Queued  bool   `json:"queued"`
	Message string `json:"message"`
}

type recordsInput struct {
	ExerciseID string `json:"exercise_id,omitempty" jsonschema:"Exercise ID; omit for all exercises"`
}

type recordsOutput struct {
	Records []*models.PersonalRecord `json:"records"`
	Message string                   `json:"message,omitempty"`
}

type listExercisesInput struct {
	Query     string `json:"query,omitempty" jsonschema:"Case-insensitive name search"`
	Muscle    string `json:"muscle,omitempty" jsonschema:"Target muscle"`
	BodyPart  string `json:"body_part,omitempty" jsonschema:"Body part"`
	Equipment string `json:"equipment,omitempty" jsonschema:"Equipment"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type listExercisesOutput struct {
	Exercises []*models.Exercise `json:"exercises"`
	Total     int                `json:"total"`
}

type emptyInput struct{}

type listRoutinesOutput struct {
	Routines []*models.WorkoutRoutine `json:"routines"`
	Source   routines.Source          `json:"source"`
}

type syncOutput struct {
	Drained    queue.DrainResult        `json:"drained"`
	Reconciled workouts.ReconcileResult `json:"reconciled"`
	Message    string                   `json:"message"`
}

type queueStatusOutput struct {
	Online bool                `json:"online"`
	Stats  queue.Stats         `json:"stats"`
	Failed []*models.QueueItem `json:"failed,omitempty"`
}

// parseTime accepts RFC 3339 or "2006-01-02 15:04" in local time.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", s, time.Local)
}

// Tool handlers

func (s *Server) handleLogWorkout(ctx context.Context, req *mcp.CallToolRequest, input logWorkoutInput) (*mcp.CallToolResult, logOutput, error) {
	if strings.TrimSpace(input.ExerciseID) == "" {
		return nil, logOutput{}, errors.New("exercise_id is required")
	}
	if _, err := s.app.Exercises.Load(ctx); err != nil {
		return nil, logOutput{}, fmt.Errorf("failed to load exercises: %w", err)
	}
	if _, err := s.app.Exercises.Get(input.ExerciseID); err != nil {
		if storage.IsNotFound(err) {
			return nil, logOutput{}, fmt.Errorf("unknown exercise: %s", input.ExerciseID)
		}
		return nil, logOutput{}, fmt.Errorf("failed to look up exercise: %w", err)
	}

	sets := make([]models.WorkoutSet, len(input.Sets))
	for i, in := range input.Sets {
		sets[i] = models.WorkoutSet{Weight: in.Weight, Reps: in.Reps, RPE: in.RPE}
	}
	l := models.NewWorkoutLog(input.ExerciseID, sets...)
	if input.PerformedAt != "" {
		t, err := parseTime(input.PerformedAt)
		if err != nil {
			return nil, logOutput{}, fmt.Errorf("invalid performed_at: %w", err)
		}
		l.WithTime(t)
	}
	if input.Note != "" {
		l.WithNote(input.Note)
	}

	saved, err := s.app.Workouts.LogWorkout(ctx, l)
	if err != nil {
		return nil, logOutput{}, fmt.Errorf("failed to log workout: %w", err)
	}

	summary := storage.FormatSets(saved.Sets)
	return nil, logOutput{
		ID:         saved.ID,
		ExerciseID: saved.ExerciseID,
		Sets:       summary,
		Volume:     saved.Volume(),
		Message:    fmt.Sprintf("Logged %s: %s (ID: %s)", saved.ExerciseID, summary, saved.ID),
	}, nil
}

func (s *Server) handleListWorkouts(ctx context.Context, req *mcp.CallToolRequest, input listWorkoutsInput) (*mcp.CallToolResult, listWorkoutsOutput, error) {
	uid, err := identity.Require(s.app.Identity)
	if err != nil {
		return nil, listWorkoutsOutput{}, err
	}
	if input.Limit <= 0 {
		input.Limit = defaultLimit
	}

	var logs []*models.WorkoutLog
	if input.ExerciseID != "" {
		logs, err = s.app.Workouts.ListForExercise(uid, input.ExerciseID)
	} else {
		logs, err = s.app.Workouts.List(uid)
	}
	if err != nil {
		return nil, listWorkoutsOutput{}, fmt.Errorf("failed to list workouts: %w", err)
	}

	logs = newestFirst(logs, input.Limit)
	if len(logs) == 0 {
		return nil, listWorkoutsOutput{Logs: []*models.WorkoutLog{}, Message: "No workouts found."}, nil
	}
	return nil, listWorkoutsOutput{Logs: logs}, nil
}

// newestFirst reverses ascending logs and truncates to limit.
func newestFirst(logs []*models.WorkoutLog, limit int) []*models.WorkoutLog {
	workouts.SortByTime(logs)
	out := make([]*models.WorkoutLog, 0, min(limit, len(logs)))
	for i := len(logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, logs[i])
	}
	return out
}

func (s *Server) handleDeleteWorkout(ctx context.Context, req *mcp.CallToolRequest, input deleteWorkoutInput) (*mcp.CallToolResult, deleteOutput, error) {
	res, err := s.app.Workouts.DeleteWorkout(ctx, input.ID)
	if err != nil {
		return nil, deleteOutput{}, fmt.Errorf("failed to delete workout: %w", err)
	}

	msg := fmt.Sprintf("Deleted workout: %s", input.ID)
	switch {
	case res.Queued && res.Local:
		msg += " (server delete queued)"
	case res.Queued:
		msg = fmt.Sprintf("Kept workout %s locally; server delete queued", input.ID)
	}
	return nil, deleteOutput{Local: res.Local, Queued: res.Queued, Message: msg}, nil
}

func (s *Server) handleGetPersonalRecords(ctx context.Context, req *mcp.CallToolRequest, input recordsInput) (*mcp.CallToolResult, recordsOutput, error) {
	uid, err := identity.Require(s.app.Identity)
	if err != nil {
		return nil, recordsOutput{}, err
	}

	if input.ExerciseID != "" {
		rec, err := s.app.Records.Get(input.ExerciseID, uid)
		if storage.IsNotFound(err) || (err == nil && rec.IsEmpty()) {
			return nil, recordsOutput{Records: []*models.PersonalRecord{}, Message: "No records for this exercise yet."}, nil
		}
		if err != nil {
			return nil, recordsOutput{}, fmt.Errorf("failed to get records: %w", err)
		}
		return nil, recordsOutput{Records: []*models.PersonalRecord{rec}}, nil
	}

	recs, err := s.app.Records.ListForUser(uid)
	if err != nil {
		return nil, recordsOutput{}, fmt.Errorf("failed to list records: %w", err)
	}
	if len(recs) == 0 {
		return nil, recordsOutput{Records: []*models.PersonalRecord{}, Message: "No personal records yet."}, nil
	}
	return nil, recordsOutput{Records: recs}, nil
}

func (s *Server) handleListExercises(ctx context.Context, req *mcp.CallToolRequest, input listExercisesInput) (*mcp.CallToolResult, listExercisesOutput, error) {
	if input.Limit <= 0 {
		input.Limit = defaultLimit
	}
	if _, err := s.app.Exercises.Load(ctx); err != nil {
		return nil, listExercisesOutput{}, fmt.Errorf("failed to load exercises: %w", err)
	}

	var (
		ex  []*models.Exercise
		err error
	)
	switch {
	case input.Muscle != "":
		ex, err = s.app.Exercises.ByTargetMuscle(input.Muscle)
	case input.BodyPart != "":
		ex, err = s.app.Exercises.ByBodyPart(input.BodyPart)
	case input.Equipment != "":
		ex, err = s.app.Exercises.ByEquipment(input.Equipment)
	default:
		ex, err = s.app.Exercises.Search(input.Query)
	}
	if err != nil {
		return nil, listExercisesOutput{}, fmt.Errorf("failed to list exercises: %w", err)
	}
	if input.Query != "" && (input.Muscle != "" || input.BodyPart != "" || input.Equipment != "") {
		filtered := ex[:0]
		for _, e := range ex {
			if e.MatchesName(input.Query) {
				filtered = append(filtered, e)
			}
		}
		ex = filtered
	}

	total := len(ex)
	if len(ex) > input.Limit {
		ex = ex[:input.Limit]
	}
	return nil, listExercisesOutput{Exercises: ex, Total: total}, nil
}

func (s *Server) handleListRoutines(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, listRoutinesOutput, error) {
	uid, err := identity.Require(s.app.Identity)
	if err != nil {
		return nil, listRoutinesOutput{}, err
	}
	rs, src, err := s.app.Routines.FetchUserRoutines(ctx, uid)
	if err != nil {
		return nil, listRoutinesOutput{}, fmt.Errorf("failed to list routines: %w", err)
	}
	if rs == nil {
		rs = []*models.WorkoutRoutine{}
	}
	return nil, listRoutinesOutput{Routines: rs, Source: src}, nil
}

func (s *Server) handleSyncNow(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, syncOutput, error) {
	drained, rec, err := s.app.SyncNow(ctx)
	if err != nil {
		return nil, syncOutput{}, fmt.Errorf("sync failed: %w", err)
	}
	s.app.PRs.Flush(ctx)
	return nil, syncOutput{
		Drained:    drained,
		Reconciled: rec,
		Message: fmt.Sprintf("Uploaded %d of %d queued changes; pulled %d logs, removed %d",
			drained.Succeeded, drained.Attempted, rec.Inserted, rec.Removed),
	}, nil
}

func (s *Server) handleQueueStatus(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, queueStatusOutput, error) {
	stats, err := s.app.Queue.Stats()
	if err != nil {
		return nil, queueStatusOutput{}, fmt.Errorf("failed to read queue: %w", err)
	}
	failed, err := s.app.Queue.Failed()
	if err != nil {
		return nil, queueStatusOutput{}, fmt.Errorf("failed to read queue: %w", err)
	}
	return nil, queueStatusOutput{Online: s.app.Monitor.Online(), Stats: stats, Failed: failed}, nil
}
