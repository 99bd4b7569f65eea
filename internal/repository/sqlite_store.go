package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"ChartSignal/internal/domain/models"
	domrepo "ChartSignal/internal/domain/repository"
	applogger "ChartSignal/pkg/logger"
	pkgsqlite "ChartSignal/pkg/sqlite"

	"github.com/google/uuid"
)

// Migrations is the prediction store schema.
var Migrations = []pkgsqlite.Migration{
	{
		Version: 1,
		Name:    "predictions",
		Stmts: []string{
			`CREATE TABLE predictions (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL,
				created_at  INTEGER NOT NULL,
				direction   TEXT NOT NULL,
				confidence  REAL NOT NULL,
				timeframe   TEXT NOT NULL,
				result      TEXT NOT NULL,
				message     TEXT NOT NULL DEFAULT '',
				feedback    TEXT,
				feedback_at INTEGER
			)`,
			`CREATE INDEX idx_predictions_user_created ON predictions (user_id, created_at DESC)`,
		},
	},
	{
		Version: 2,
		Name:    "users",
		Stmts: []string{
			`CREATE TABLE users (
				user_id       TEXT PRIMARY KEY,
				created_at    INTEGER NOT NULL,
				timeframe     TEXT NOT NULL DEFAULT '',
				indicators    TEXT NOT NULL DEFAULT '[]',
				sensitivity   TEXT NOT NULL DEFAULT '',
				language      TEXT NOT NULL DEFAULT '',
				notifications INTEGER NOT NULL DEFAULT 1
			)`,
		},
	},
	{
		Version: 3,
		Name:    "statistics",
		Stmts: []string{
			`CREATE TABLE statistics (
				id                  INTEGER PRIMARY KEY CHECK (id = 1),
				total_predictions   INTEGER NOT NULL DEFAULT 0,
				correct_predictions INTEGER NOT NULL DEFAULT 0,
				daily_requests      INTEGER NOT NULL DEFAULT 0,
				daily_reset_at      INTEGER NOT NULL DEFAULT 0
			)`,
			`INSERT INTO statistics (id) VALUES (1)`,
		},
	},
}

// SQLitePredictionStore implements PredictionStore on SQLite.
type SQLitePredictionStore struct {
	client *pkgsqlite.Client
	db     *sql.DB
	l      *applogger.Logger
	now    func() time.Time
}

// NewSQLitePredictionStore migrates the schema and returns the store.
func NewSQLitePredictionStore(ctx context.Context, client *pkgsqlite.Client, l *applogger.Logger) (*SQLitePredictionStore, error) {
	if err := client.Migrate(ctx, Migrations); err != nil {
		return nil, fmt.Errorf("migrate prediction store: %w", err)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &SQLitePredictionStore{client: client, db: client.DB(), l: l, now: time.Now}, nil
}

// SavePrediction stores p, assigning an id and timestamp when unset.
func (s *SQLitePredictionStore) SavePrediction(ctx context.Context, p *models.Prediction) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	result, err := json.Marshal(p.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO predictions (id, user_id, created_at, direction, confidence, timeframe, result, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.UserID, p.CreatedAt.UnixNano(), string(p.Result.Direction), p.Result.Confidence,
			p.Result.Timeframe, string(result), p.Message,
		); err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE statistics SET total_predictions = total_predictions + 1 WHERE id = 1`); err != nil {
			return fmt.Errorf("count prediction: %w", err)
		}
		return nil
	})
}

const predictionColumns = `id, user_id, created_at, result, message, feedback`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrediction(r rowScanner) (*models.Prediction, error) {
	var (
		p        models.Prediction
		created  int64
		result   string
		feedback sql.NullString
	)
	if err := r.Scan(&p.ID, &p.UserID, &created, &result, &p.Message, &feedback); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(result), &p.Result); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", p.ID, err)
	}
	if feedback.Valid {
		f := models.FeedbackResult(feedback.String)
		p.Feedback = &f
	}
	return &p, nil
}

func (s *SQLitePredictionStore) GetPrediction(ctx context.Context, id string) (*models.Prediction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+predictionColumns+` FROM predictions WHERE id = ?`, id)
	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return p, nil
}

// ListUserPredictions returns the newest predictions of userID created at or after since.
func (s *SQLitePredictionStore) ListUserPredictions(ctx context.Context, userID string, since time.Time, limit int) ([]*models.Prediction, error) {
	if limit <= 0 {
		limit = 10
	}
	var from int64
	if !since.IsZero() {
		from = since.UnixNano()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+predictionColumns+`
		FROM predictions
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, from, limit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Prediction, 0, limit)
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// SaveFeedback records the verdict once. A correct verdict bumps correct_predictions.
func (s *SQLitePredictionStore) SaveFeedback(ctx context.Context, id string, result models.FeedbackResult) error {
	if !result.Valid() {
		return fmt.Errorf("invalid feedback %q", result)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// The write comes first so concurrent posts for one id serialize on
		// the write lock instead of upgrading a read snapshot.
		res, err := tx.ExecContext(ctx, `UPDATE predictions SET feedback = ?, feedback_at = ? WHERE id = ? AND feedback IS NULL`,
			string(result), s.now().UnixNano(), id)
		if err != nil {
			return fmt.Errorf("save feedback: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("save feedback: %w", err)
		}
		if n == 0 {
			var one int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM predictions WHERE id = ?`, id).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return domrepo.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("read prediction: %w", err)
			}
			return domrepo.ErrFeedbackExists
		}
		if result == models.FeedbackCorrect {
			if _, err := tx.ExecContext(ctx, `UPDATE statistics SET correct_predictions = correct_predictions + 1 WHERE id = 1`); err != nil {
				return fmt.Errorf("count correct: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLitePredictionStore) EnsureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (user_id, created_at) VALUES (?, ?)`,
		userID, s.now().UnixNano()); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// GetSettings returns the stored settings. Unset fields are empty.
func (s *SQLitePredictionStore) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	var (
		us         = models.UserSettings{UserID: userID}
		indicators string
		sens       string
		notify     int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT timeframe, indicators, sensitivity, language, notifications
		FROM users WHERE user_id = ?`, userID).
		Scan(&us.Timeframe, &indicators, &sens, &us.Language, &notify)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if err := json.Unmarshal([]byte(indicators), &us.Indicators); err != nil {
		return nil, fmt.Errorf("decode indicators: %w", err)
	}
	us.Sensitivity = models.Sensitivity(sens)
	us.Notifications = notify != 0
	return &us, nil
}

// SaveSettings upserts the settings, creating the user if needed.
func (s *SQLitePredictionStore) SaveSettings(ctx context.Context, us *models.UserSettings) error {
	indicators := us.Indicators
	if indicators == nil {
		indicators = []string{}
	}
	enc, err := json.Marshal(indicators)
	if err != nil {
		return fmt.Errorf("encode indicators: %w", err)
	}
	notify := 0
	if us.Notifications {
		notify = 1
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, created_at, timeframe, indicators, sensitivity, language, notifications)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			timeframe = excluded.timeframe,
			indicators = excluded.indicators,
			sensitivity = excluded.sensitivity,
			language = excluded.language,
			notifications = excluded.notifications`,
		us.UserID, s.now().UnixNano(), us.Timeframe, string(enc), string(us.Sensitivity), us.Language, notify,
	); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Stats returns the counters. Accuracy is a percentage rounded to 2 decimals.
func (s *SQLitePredictionStore) Stats(ctx context.Context) (*models.Statistics, error) {
	var st models.Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT total_predictions, correct_predictions, daily_requests, (SELECT COUNT(*) FROM users)
		FROM statistics WHERE id = 1`).
		Scan(&st.TotalPredictions, &st.CorrectPredictions, &st.DailyRequests, &st.TotalUsers)
	if err != nil {
		return nil, fmt.Errorf("read statistics: %w", err)
	}
	if st.TotalPredictions > 0 {
		st.Accuracy = math.Round(float64(st.CorrectPredictions)/float64(st.TotalPredictions)*10000) / 100
	}
	return &st, nil
}

func (s *SQLitePredictionStore) IncrementDaily(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE statistics SET daily_requests = daily_requests + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("increment daily: %w", err)
	}
	return nil
}

func (s *SQLitePredictionStore) ResetDaily(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE statistics SET daily_requests = 0, daily_reset_at = ? WHERE id = 1`,
		s.now().UnixNano()); err != nil {
		return fmt.Errorf("reset daily: %w", err)
	}
	s.l.Info("daily request counter reset")
	return nil
}

func (s *SQLitePredictionStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *SQLitePredictionStore) Close() error {
	return s.client.Close()
}

func (s *SQLitePredictionStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var _ domrepo.PredictionStore = (*SQLitePredictionStore)(nil)
