// Package store is the scenario archive: every completed generation is
// persisted and recent ones are served back to the UI.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"whatify/pkg/db"
	"whatify/pkg/model"
)

// ScenarioStore persists and lists generated scenarios.
type ScenarioStore interface {
	SaveScenario(ctx context.Context, scenario *model.Scenario) error
	RecentScenarios(ctx context.Context, limit int) ([]model.Scenario, error)
	Close() error
}

// SQLiteStore implements ScenarioStore.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveScenario inserts one completed generation.
func (s *SQLiteStore) SaveScenario(ctx context.Context, scenario *model.Scenario) error {
	timeline, err := json.Marshal(scenario.Timeline)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline: %w", err)
	}

	var geoChanges sql.NullString
	if scenario.GeoChanges != nil {
		raw, err := json.Marshal(scenario.GeoChanges)
		if err != nil {
			return fmt.Errorf("failed to marshal geo changes: %w", err)
		}
		geoChanges = sql.NullString{String: string(raw), Valid: true}
	}

	createdAt := scenario.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scenarios (id, prompt, summary, timeline, geo_changes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), scenario.Prompt, scenario.Summary,
		string(timeline), geoChanges, createdAt.Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("failed to insert scenario: %w", err)
	}
	return nil
}

// RecentScenarios returns the newest scenarios, most recent first.
func (s *SQLiteStore) RecentScenarios(ctx context.Context, limit int) ([]model.Scenario, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT prompt, summary, timeline, geo_changes, created_at
		 FROM scenarios ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []model.Scenario
	for rows.Next() {
		var sc model.Scenario
		var timeline string
		var geoChanges sql.NullString
		var createdAt string

		if err := rows.Scan(&sc.Prompt, &sc.Summary, &timeline, &geoChanges, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		if err := json.Unmarshal([]byte(timeline), &sc.Timeline); err != nil {
			return nil, fmt.Errorf("failed to unmarshal timeline: %w", err)
		}
		if geoChanges.Valid {
			if err := json.Unmarshal([]byte(geoChanges.String), &sc.GeoChanges); err != nil {
				return nil, fmt.Errorf("failed to unmarshal geo changes: %w", err)
			}
		}
		if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			sc.CreatedAt = t
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}
