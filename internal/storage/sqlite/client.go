package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sentinelle/backend/internal/storage/models"
	"github.com/sentinelle/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batch_runs (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		message_count INTEGER NOT NULL,
		succeeded INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		cache_hits INTEGER DEFAULT 0,
		provider_calls INTEGER DEFAULT 0,
		cost_usd REAL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_batch_runs_started ON batch_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_batch_runs_status ON batch_runs(status);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		author TEXT,
		text TEXT NOT NULL,
		posted_at INTEGER,
		likes INTEGER DEFAULT 0,
		reposts INTEGER DEFAULT 0,
		replies INTEGER DEFAULT 0,
		sentiment TEXT NOT NULL,
		sentiment_score REAL NOT NULL,
		category TEXT NOT NULL,
		priority TEXT NOT NULL,
		keywords TEXT,
		urgent INTEGER DEFAULT 0,
		needs_response INTEGER DEFAULT 0,
		estimated_resolution_min INTEGER,
		provider TEXT NOT NULL,
		model TEXT,
		from_cache INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (batch_id) REFERENCES batch_runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_batch ON analyses(batch_id);
	CREATE INDEX IF NOT EXISTS idx_analyses_sentiment ON analyses(sentiment);
	CREATE INDEX IF NOT EXISTS idx_analyses_category ON analyses(category);
	CREATE INDEX IF NOT EXISTS idx_analyses_priority ON analyses(priority);
	CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertBatchRun(run *models.BatchRun) error {
	_, err := c.db.Exec(`
		INSERT INTO batch_runs (id, provider, message_count, succeeded, failed, cache_hits,
			provider_calls, cost_usd, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Provider, run.MessageCount, run.Succeeded, run.Failed, run.CacheHits,
		run.ProviderCalls, run.CostUSD, run.Status, run.Error,
		run.StartedAt.Unix(), nullableUnix(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch run: %w", err)
	}
	return nil
}

func (c *Client) UpdateBatchRun(run *models.BatchRun) error {
	_, err := c.db.Exec(`
		UPDATE batch_runs
		SET succeeded = ?, failed = ?, cache_hits = ?, provider_calls = ?,
			cost_usd = ?, status = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		run.Succeeded, run.Failed, run.CacheHits, run.ProviderCalls,
		run.CostUSD, run.Status, run.Error, nullableUnix(run.FinishedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update batch run: %w", err)
	}
	return nil
}

func (c *Client) GetBatchRun(id string) (*models.BatchRun, error) {
	row := c.db.QueryRow(`
		SELECT id, provider, message_count, succeeded, failed, cache_hits,
			provider_calls, cost_usd, status, COALESCE(error, ''), started_at, finished_at
		FROM batch_runs WHERE id = ?`, id)

	var (
		run        models.BatchRun
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := row.Scan(&run.ID, &run.Provider, &run.MessageCount, &run.Succeeded, &run.Failed,
		&run.CacheHits, &run.ProviderCalls, &run.CostUSD, &run.Status, &run.Error,
		&startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch run: %w", err)
	}

	run.StartedAt = time.Unix(startedAt, 0)
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0)
		run.FinishedAt = &t
	}

	return &run, nil
}

// InsertAnalyses writes one batch's classifications in a single transaction.
func (c *Client) InsertAnalyses(rows []*models.AnalyzedMessage) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO analyses (id, batch_id, message_id, author, text, posted_at,
			likes, reposts, replies, sentiment, sentiment_score, category, priority,
			keywords, urgent, needs_response, estimated_resolution_min,
			provider, model, from_cache, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		keywords, err := json.Marshal(row.Keywords)
		if err != nil {
			return fmt.Errorf("failed to marshal keywords: %w", err)
		}

		_, err = stmt.Exec(row.ID, row.BatchID, row.MessageID, row.Author, row.Text,
			row.PostedAt.Unix(), row.Likes, row.Reposts, row.Replies,
			row.Sentiment, row.SentimentScore, row.Category, row.Priority,
			string(keywords), row.Urgent, row.NeedsResponse, row.EstimatedResolutionMin,
			row.Provider, row.Model, row.FromCache, row.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert analysis %s: %w", row.MessageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit analyses: %w", err)
	}

	logger.Debug("Analyses persisted", zap.Int("count", len(rows)))
	return nil
}

func (c *Client) ListAnalysesByBatch(batchID string) ([]*models.AnalyzedMessage, error) {
	rows, err := c.db.Query(`
		SELECT id, batch_id, message_id, author, text, posted_at, likes, reposts, replies,
			sentiment, sentiment_score, category, priority, COALESCE(keywords, '[]'),
			urgent, needs_response, estimated_resolution_min, provider, COALESCE(model, ''),
			from_cache, created_at
		FROM analyses WHERE batch_id = ? ORDER BY created_at`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []*models.AnalyzedMessage
	for rows.Next() {
		var (
			row       models.AnalyzedMessage
			postedAt  int64
			createdAt int64
			keywords  string
			estMin    sql.NullInt64
		)
		err := rows.Scan(&row.ID, &row.BatchID, &row.MessageID, &row.Author, &row.Text,
			&postedAt, &row.Likes, &row.Reposts, &row.Replies,
			&row.Sentiment, &row.SentimentScore, &row.Category, &row.Priority, &keywords,
			&row.Urgent, &row.NeedsResponse, &estMin, &row.Provider, &row.Model,
			&row.FromCache, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}

		row.PostedAt = time.Unix(postedAt, 0)
		row.CreatedAt = time.Unix(createdAt, 0)
		if estMin.Valid {
			v := int(estMin.Int64)
			row.EstimatedResolutionMin = &v
		}
		if err := json.Unmarshal([]byte(keywords), &row.Keywords); err != nil {
			row.Keywords = nil
		}

		out = append(out, &row)
	}

	return out, rows.Err()
}

// KPISummary aggregates all persisted classifications for dashboard display.
func (c *Client) KPISummary() (*models.KPISummary, error) {
	summary := &models.KPISummary{
		BySentiment: make(map[string]int),
		ByCategory:  make(map[string]int),
		ByPriority:  make(map[string]int),
	}

	row := c.db.QueryRow(`
		SELECT COUNT(*), COALESCE(AVG(sentiment_score), 0),
			COALESCE(SUM(needs_response), 0), COALESCE(SUM(urgent), 0)
		FROM analyses`)
	if err := row.Scan(&summary.TotalMessages, &summary.AvgSentimentScore,
		&summary.NeedsResponse, &summary.Urgent); err != nil {
		return nil, fmt.Errorf("failed to aggregate totals: %w", err)
	}

	for column, dest := range map[string]map[string]int{
		"sentiment": summary.BySentiment,
		"category":  summary.ByCategory,
		"priority":  summary.ByPriority,
	} {
		rows, err := c.db.Query(fmt.Sprintf(
			"SELECT %s, COUNT(*) FROM analyses GROUP BY %s", column, column))
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate by %s: %w", column, err)
		}

		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s aggregate: %w", column, err)
			}
			dest[key] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return summary, nil
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
