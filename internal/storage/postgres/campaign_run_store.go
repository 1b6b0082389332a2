package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"execution-lab/internal/domain"
	"execution-lab/internal/storage"
)

// CampaignRunStore implements storage.CampaignRunStore using PostgreSQL.
type CampaignRunStore struct {
	pool *Pool
}

// NewCampaignRunStore creates a new CampaignRunStore.
func NewCampaignRunStore(pool *Pool) *CampaignRunStore {
	return &CampaignRunStore{pool: pool}
}

var _ storage.CampaignRunStore = (*CampaignRunStore)(nil)

const campaignRunColumns = `run_id, strategy_id, symbol, from_ms, to_ms, seed, passed, reason, metrics, created_at_ms`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *CampaignRunStore) Insert(ctx context.Context, r *domain.CampaignRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}
	metrics := r.MetricsJSON
	if len(metrics) == 0 {
		metrics = []byte("{}")
	}

	query := `INSERT INTO campaign_runs (` + campaignRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.StrategyID, r.Symbol, r.FromMs, r.ToMs, int64(r.Seed),
		r.Passed, r.Reason, string(metrics), r.CreatedAtMs,
	)
	return mapError("insert campaign run", err)
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *CampaignRunStore) GetByID(ctx context.Context, runID string) (*domain.CampaignRun, error) {
	query := `SELECT ` + campaignRunColumns + ` FROM campaign_runs WHERE run_id = $1`
	r, err := scanCampaignRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		return nil, mapError("get campaign run", err)
	}
	return r, nil
}

// GetByStrategy retrieves all runs of a strategy, ordered by from_ms ASC, run_id ASC.
func (s *CampaignRunStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.CampaignRun, error) {
	query := `SELECT ` + campaignRunColumns + `
		FROM campaign_runs
		WHERE strategy_id = $1
		ORDER BY from_ms ASC, run_id ASC`
	rows, err := s.pool.Query(ctx, query, strategyID)
	if err != nil {
		return nil, mapError("get campaign runs by strategy", err)
	}
	defer rows.Close()

	var runs []*domain.CampaignRun
	for rows.Next() {
		r, err := scanCampaignRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign run rows: %w", err)
	}
	return runs, nil
}

func scanCampaignRun(row pgx.Row) (*domain.CampaignRun, error) {
	var r domain.CampaignRun
	var seed int64
	var metrics string
	if err := row.Scan(
		&r.RunID, &r.StrategyID, &r.Symbol, &r.FromMs, &r.ToMs, &seed,
		&r.Passed, &r.Reason, &metrics, &r.CreatedAtMs,
	); err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)
	r.MetricsJSON = []byte(metrics)
	return &r, nil
}
