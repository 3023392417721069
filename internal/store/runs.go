package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"optexec/internal/costmodel"
	"optexec/internal/solver"
)

// RunRecord is one persisted solve run.
type RunRecord struct {
	ID                int64
	CreatedAt         time.Time
	Ticker            string
	Parameters        costmodel.Parameters
	Schedule          []float64
	Cost              costmodel.Breakdown
	ImprovementVsTWAP float64
	Status            string
	Feasible          bool
	Generations       int
	Evaluations       int
	Seed              int64
}

// ExperimentRecord is one persisted Monte Carlo aggregate.
type ExperimentRecord struct {
	ID              int64
	CreatedAt       time.Time
	Ticker          string
	Scenarios       int
	MeanCost        float64
	StdCost         float64
	MinCost         float64
	MaxCost         float64
	MedianCost      float64
	CostVariation   float64
	MeanImprovement float64
}

// RunStore persists runs and experiments, creating its tables on first
// use.
type RunStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRunStore initializes the schema and returns the store.
func NewRunStore(db *sql.DB, logger *zap.Logger) (*RunStore, error) {
	if db == nil {
		return nil, errors.New("store: database handle must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rs := &RunStore{db: db, logger: logger}
	if err := rs.initSchema(); err != nil {
		return nil, err
	}
	return rs, nil
}

func (rs *RunStore) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			ticker TEXT NOT NULL,
			parameters TEXT NOT NULL,
			schedule TEXT NOT NULL,
			cost_impact REAL NOT NULL,
			cost_spread REAL NOT NULL,
			cost_risk REAL NOT NULL,
			cost_total REAL NOT NULL,
			improvement_vs_twap REAL NOT NULL,
			status TEXT NOT NULL,
			feasible INTEGER NOT NULL,
			generations INTEGER NOT NULL,
			evaluations INTEGER NOT NULL,
			seed INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs(ticker);`,
		`CREATE TABLE IF NOT EXISTS experiments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			ticker TEXT NOT NULL,
			scenarios INTEGER NOT NULL,
			mean_cost REAL NOT NULL,
			std_cost REAL NOT NULL,
			min_cost REAL NOT NULL,
			max_cost REAL NOT NULL,
			median_cost REAL NOT NULL,
			cost_variation REAL NOT NULL,
			mean_improvement REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_experiments_ticker ON experiments(ticker);`,
	}

	for _, stmt := range schema {
		if _, err := rs.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: initializing schema: %w", err)
		}
	}
	return nil
}

// SaveRun records a solve run and returns its row id.
func (rs *RunStore) SaveRun(ctx context.Context, ticker string, params costmodel.Parameters, result solver.Result) (int64, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("store: encoding parameters: %w", err)
	}
	scheduleJSON, err := json.Marshal(result.Schedule)
	if err != nil {
		return 0, fmt.Errorf("store: encoding schedule: %w", err)
	}

	res, err := rs.db.ExecContext(ctx,
		`INSERT INTO runs (
			created_at, ticker, parameters, schedule,
			cost_impact, cost_spread, cost_risk, cost_total,
			improvement_vs_twap, status, feasible, generations, evaluations, seed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		ticker,
		string(paramsJSON),
		string(scheduleJSON),
		result.Cost.Impact,
		result.Cost.Spread,
		result.Cost.Risk,
		result.Cost.Total,
		result.ImprovementVsTWAP,
		string(result.Status),
		boolToInt(result.Feasible),
		result.Generations,
		result.Evaluations,
		result.Seed,
	)
	if err != nil {
		return 0, fmt.Errorf("store: inserting run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: reading run id: %w", err)
	}

	rs.logger.Info("run persisted",
		zap.String("op", "store.SaveRun"),
		zap.Int64("id", id),
		zap.String("ticker", ticker),
		zap.Float64("totalCost", result.Cost.Total),
	)
	return id, nil
}

// ListRuns returns the most recent runs for a ticker, newest first. An
// empty ticker lists across all tickers.
func (rs *RunStore) ListRuns(ctx context.Context, ticker string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, created_at, ticker, parameters, schedule,
		cost_impact, cost_spread, cost_risk, cost_total,
		improvement_vs_twap, status, feasible, generations, evaluations, seed
		FROM runs`
	args := []interface{}{}
	if ticker != "" {
		query += ` WHERE ticker = ?`
		args = append(args, ticker)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := rs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: listing runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			rec          RunRecord
			createdAt    string
			paramsJSON   string
			scheduleJSON string
			status       string
			feasible     int
		)
		if err := rows.Scan(
			&rec.ID, &createdAt, &rec.Ticker, &paramsJSON, &scheduleJSON,
			&rec.Cost.Impact, &rec.Cost.Spread, &rec.Cost.Risk, &rec.Cost.Total,
			&rec.ImprovementVsTWAP, &status, &feasible,
			&rec.Generations, &rec.Evaluations, &rec.Seed,
		); err != nil {
			return nil, fmt.Errorf("store: scanning run: %w", err)
		}

		if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("store: parsing run timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &rec.Parameters); err != nil {
			return nil, fmt.Errorf("store: decoding parameters: %w", err)
		}
		if err := json.Unmarshal([]byte(scheduleJSON), &rec.Schedule); err != nil {
			return nil, fmt.Errorf("store: decoding schedule: %w", err)
		}
		rec.Status = status
		rec.Feasible = feasible != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveExperiment records a Monte Carlo aggregate and returns its row id.
func (rs *RunStore) SaveExperiment(ctx context.Context, rec ExperimentRecord) (int64, error) {
	res, err := rs.db.ExecContext(ctx,
		`INSERT INTO experiments (
			created_at, ticker, scenarios,
			mean_cost, std_cost, min_cost, max_cost, median_cost,
			cost_variation, mean_improvement
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		rec.Ticker,
		rec.Scenarios,
		rec.MeanCost,
		rec.StdCost,
		rec.MinCost,
		rec.MaxCost,
		rec.MedianCost,
		rec.CostVariation,
		rec.MeanImprovement,
	)
	if err != nil {
		return 0, fmt.Errorf("store: inserting experiment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: reading experiment id: %w", err)
	}

	rs.logger.Info("experiment persisted",
		zap.String("op", "store.SaveExperiment"),
		zap.Int64("id", id),
		zap.String("ticker", rec.Ticker),
		zap.Int("scenarios", rec.Scenarios),
	)
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
