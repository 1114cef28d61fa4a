package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

const createQuizSessionsSQL = `
CREATE TABLE IF NOT EXISTS quiz_sessions (
	id             BIGSERIAL PRIMARY KEY,
	community_id   TEXT        NOT NULL,
	channel_id     TEXT        NOT NULL,
	host_id        TEXT        NOT NULL,
	topic          TEXT        NOT NULL,
	difficulty     TEXT        NOT NULL,
	question_count INTEGER     NOT NULL,
	mode           TEXT        NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	ended_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS quiz_session_participants (
	session_id     BIGINT  NOT NULL REFERENCES quiz_sessions(id) ON DELETE CASCADE,
	participant_id TEXT    NOT NULL,
	points         INTEGER NOT NULL,
	correct_count  INTEGER NOT NULL,
	wrong_count    INTEGER NOT NULL,
	PRIMARY KEY (session_id, participant_id)
);

CREATE INDEX IF NOT EXISTS idx_quiz_sessions_scope
	ON quiz_sessions (community_id, channel_id);
`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createQuizSessionsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS quiz_session_participants; DROP TABLE IF EXISTS quiz_sessions`)
			return err
		},
	)
}
