package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"
)

const connectAttempts = 10

// Connect opens a traced Postgres pool, waits for it to answer and runs migrations.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	sqlDB, err := otelsql.Open("postgres", dsn, otelsql.WithAttributes(semconv.DBSystemPostgreSQL))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	otelsql.RegisterDBStatsMetrics(sqlDB, otelsql.WithAttributes(semconv.DBSystemPostgreSQL))

	db := sqlx.NewDb(sqlDB, "postgres")
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	for i := 0; i < connectAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		log.Printf("waiting for database attempt=%d err=%v", i+1, err)
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            avatar_url TEXT,
            avatar_media_id TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chats (
            id SERIAL PRIMARY KEY,
            type TEXT NOT NULL CHECK (type IN ('DIRECT', 'GROUP')),
            title TEXT,
            avatar_url TEXT,
            avatar_media_id TEXT,
            private_key TEXT UNIQUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK ((type = 'DIRECT' AND private_key IS NOT NULL AND title IS NULL)
                OR (type = 'GROUP' AND private_key IS NULL AND title IS NOT NULL))
        );`,
		`CREATE INDEX IF NOT EXISTS chats_updated_at_idx ON chats (updated_at DESC);`,
		`CREATE TABLE IF NOT EXISTS chat_participants (
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            role TEXT NOT NULL DEFAULT 'MEMBER' CHECK (role IN ('OWNER', 'ADMIN', 'MEMBER')),
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (chat_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS chat_participants_user_idx ON chat_participants (user_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS chat_participants_single_owner ON chat_participants (chat_id) WHERE role = 'OWNER';`,
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            from_id INT REFERENCES users(id) ON DELETE SET NULL,
            text TEXT NOT NULL DEFAULT '',
            image_url TEXT,
            image_public_id TEXT,
            type TEXT NOT NULL DEFAULT 'TEXT' CHECK (type IN ('TEXT', 'SYSTEM')),
            meta JSONB,
            read BOOLEAN NOT NULL DEFAULT FALSE,
            edited BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS messages_chat_id_id_idx ON messages (chat_id, id);`,
		`CREATE INDEX IF NOT EXISTS messages_unread_idx ON messages (chat_id) WHERE read = FALSE;`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
