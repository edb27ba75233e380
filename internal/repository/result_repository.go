package repository

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/game"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("repository.result")

// MaxResultsLimit caps how many rows a single query returns.
const MaxResultsLimit = 100

// GameResult is one finished game.
type GameResult struct {
	ID          int64        `json:"id"`
	RoomID      string       `json:"roomId"`
	RoomName    string       `json:"roomName"`
	PlayerX     string       `json:"playerX"`
	PlayerO     string       `json:"playerO"`
	Outcome     game.Outcome `json:"outcome"`
	WinningLine *[3]int      `json:"winningLine"`
	FinishedAt  time.Time    `json:"finishedAt"`
}

// Winner returns the id of the winning player, or "" for a draw.
func (r GameResult) Winner() string {
	switch r.Outcome {
	case game.OutcomeX:
		return r.PlayerX
	case game.OutcomeO:
		return r.PlayerO
	default:
		return ""
	}
}

// ResultRepository defines the interface for the finished-games ledger.
type ResultRepository interface {
	Record(ctx context.Context, result *GameResult) error
	Recent(ctx context.Context, limit int) ([]GameResult, error)
	ByPlayer(ctx context.Context, playerID string, limit int) ([]GameResult, error)
}

type resultRow struct {
	ID          int64          `db:"id"`
	RoomID      string         `db:"room_id"`
	RoomName    string         `db:"room_name"`
	PlayerX     string         `db:"player_x"`
	PlayerO     string         `db:"player_o"`
	Outcome     string         `db:"outcome"`
	WinningLine sql.NullString `db:"winning_line"`
	FinishedAt  time.Time      `db:"finished_at"`
}

type sqliteResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new SQLite-based ResultRepository.
func NewResultRepository(db *sqlx.DB) ResultRepository {
	return &sqliteResultRepository{db: db}
}

// Record inserts a finished game and sets its ID.
func (r *sqliteResultRepository) Record(ctx context.Context, result *GameResult) error {
	ctx, span := tracer.Start(ctx, "ResultRepository.Record")
	defer span.End()
	span.SetAttributes(attribute.String("room.id", result.RoomID), attribute.String("game.outcome", string(result.Outcome)))

	if result.FinishedAt.IsZero() {
		result.FinishedAt = time.Now().UTC()
	}

	query := `INSERT INTO game_results (room_id, room_name, player_x, player_o, outcome, winning_line, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		result.RoomID, result.RoomName, result.PlayerX, result.PlayerO,
		string(result.Outcome), encodeLine(result.WinningLine), result.FinishedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to record game result")
		return fmt.Errorf("failed to record game result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read game result id: %w", err)
	}
	result.ID = id
	return nil
}

// Recent returns the latest finished games, newest first.
func (r *sqliteResultRepository) Recent(ctx context.Context, limit int) ([]GameResult, error) {
	ctx, span := tracer.Start(ctx, "ResultRepository.Recent")
	defer span.End()

	query := `SELECT id, room_id, room_name, player_x, player_o, outcome, winning_line, finished_at
		FROM game_results ORDER BY finished_at DESC, id DESC LIMIT ?`
	return r.query(ctx, query, clampLimit(limit))
}

// ByPlayer returns the latest finished games involving playerID.
func (r *sqliteResultRepository) ByPlayer(ctx context.Context, playerID string, limit int) ([]GameResult, error) {
	ctx, span := tracer.Start(ctx, "ResultRepository.ByPlayer")
	defer span.End()
	span.SetAttributes(attribute.String("player.id", playerID))

	query := `SELECT id, room_id, room_name, player_x, player_o, outcome, winning_line, finished_at
		FROM game_results WHERE player_x = ? OR player_o = ?
		ORDER BY finished_at DESC, id DESC LIMIT ?`
	return r.query(ctx, query, playerID, playerID, clampLimit(limit))
}

func (r *sqliteResultRepository) query(ctx context.Context, query string, args ...any) ([]GameResult, error) {
	var rows []resultRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query game results: %w", err)
	}

	results := make([]GameResult, 0, len(rows))
	for _, row := range rows {
		line, err := decodeLine(row.WinningLine)
		if err != nil {
			return nil, fmt.Errorf("game result %d: %w", row.ID, err)
		}
		results = append(results, GameResult{
			ID:          row.ID,
			RoomID:      row.RoomID,
			RoomName:    row.RoomName,
			PlayerX:     row.PlayerX,
			PlayerO:     row.PlayerO,
			Outcome:     game.Outcome(row.Outcome),
			WinningLine: line,
			FinishedAt:  row.FinishedAt,
		})
	}
	return results, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxResultsLimit {
		return MaxResultsLimit
	}
	return limit
}

// encodeLine stores a winning line as "a,b,c".
func encodeLine(line *[3]int) sql.NullString {
	if line == nil {
		return sql.NullString{}
	}
	return sql.NullString{
		String: fmt.Sprintf("%d,%d,%d", line[0], line[1], line[2]),
		Valid:  true,
	}
}

func decodeLine(s sql.NullString) (*[3]int, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	parts := strings.Split(s.String, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed winning line %q", s.String)
	}
	var line [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("malformed winning line %q: %w", s.String, err)
		}
		line[i] = n
	}
	return &line, nil
}
