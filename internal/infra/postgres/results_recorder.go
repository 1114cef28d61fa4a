package postgres

import (
	"context"
	"fmt"

	"trivia-session-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultsRecorder writes completed-session summaries to Postgres: one row in
// quiz_sessions plus one row per participant.
type ResultsRecorder struct {
	pool *pgxpool.Pool
}

func NewResultsRecorder(pool *pgxpool.Pool) *ResultsRecorder {
	return &ResultsRecorder{pool: pool}
}

func (r *ResultsRecorder) RecordResults(ctx context.Context, summary domain.SessionSummary) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var sessionID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO quiz_sessions
			(community_id, channel_id, host_id, topic, difficulty, question_count, mode, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		summary.Scope.CommunityID, summary.Scope.ChannelID, summary.HostID,
		summary.Topic, summary.Difficulty, summary.QuestionCount,
		string(summary.Mode), summary.StartedAt, summary.EndedAt,
	).Scan(&sessionID)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	rows := make([][]any, 0, len(summary.Participants))
	for _, p := range summary.Participants {
		rows = append(rows, []any{sessionID, p.ParticipantID, p.Points, p.CorrectCount, p.WrongCount})
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"quiz_session_participants"},
			[]string{"session_id", "participant_id", "points", "correct_count", "wrong_count"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
