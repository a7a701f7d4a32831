package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/carevoice/companion/pkg/ai/sentiment"
	_ "modernc.org/sqlite"
)

// SQLiteStore is an append-only durable mirror of the conversation history.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) the conversation database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			user_message TEXT NOT NULL,
			ai_response TEXT NOT NULL,
			sentiment TEXT,
			score REAL,
			topic TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append inserts one turn. Rows are never updated or deleted.
func (s *SQLiteStore) Append(ctx context.Context, t Turn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (timestamp, user_message, ai_response, sentiment, score, topic)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.At.Format(time.RFC3339), t.UserText, t.AIText, string(t.Sentiment), t.Score, t.Topic)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// Recent returns the last n turns in chronological order, for seeding a new
// session's context from previous conversations.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, user_message, ai_response, sentiment, score, topic
		FROM conversations
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var ts, label sql.NullString
		var score sql.NullFloat64
		var topic sql.NullString
		if err := rows.Scan(&ts, &t.UserText, &t.AIText, &label, &score, &topic); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if ts.Valid {
			if at, err := time.Parse(time.RFC3339, ts.String); err == nil {
				t.At = at
			}
		}
		if label.Valid {
			t.Sentiment = sentimentLabel(label.String)
		}
		if score.Valid {
			t.Score = score.Float64
		}
		if topic.Valid {
			t.Topic = topic.String
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// DESC query; flip back to insertion order.
	reverse(turns)
	return turns, nil
}

func reverse(turns []Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}

func sentimentLabel(s string) sentiment.Label {
	switch l := sentiment.Label(s); l {
	case sentiment.Happy, sentiment.Sad, sentiment.Neutral:
		return l
	default:
		return sentiment.Neutral
	}
}
