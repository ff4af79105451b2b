package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
)

// PostgresSyncStateRepo はPostgreSQLを使用した同期状態リポジトリ。
type PostgresSyncStateRepo struct {
	db *sql.DB
}

// NewPostgresSyncStateRepo はPostgresSyncStateRepoを生成する。
func NewPostgresSyncStateRepo(db *sql.DB) *PostgresSyncStateRepo {
	return &PostgresSyncStateRepo{db: db}
}

// Find は指定リソースの同期状態を取得する。見つからない場合はnilを返す。
func (r *PostgresSyncStateRepo) Find(ctx context.Context, resource model.SyncResource) (*model.SyncState, error) {
	state := &model.SyncState{}
	var lastSyncedAt, lastFullSyncAt, nextSyncAt sql.NullTime
	var lastError sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT resource, last_synced_at, last_full_synced_at, next_sync_at, consecutive_errors, last_error, updated_at
		 FROM sync_states WHERE resource = $1`,
		string(resource),
	).Scan(
		&state.Resource, &lastSyncedAt, &lastFullSyncAt, &nextSyncAt,
		&state.ConsecutiveErrors, &lastError, &state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("同期状態の取得に失敗しました: %w", err)
	}

	if lastSyncedAt.Valid {
		state.LastSyncedAt = lastSyncedAt.Time
	}
	if lastFullSyncAt.Valid {
		state.LastFullSyncAt = lastFullSyncAt.Time
	}
	if nextSyncAt.Valid {
		state.NextSyncAt = nextSyncAt.Time
	}
	state.LastError = nullStringValue(lastError)

	return state, nil
}

// Upsert は同期状態を冪等にUPSERTする。
func (r *PostgresSyncStateRepo) Upsert(ctx context.Context, state *model.SyncState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_states (resource, last_synced_at, last_full_synced_at, next_sync_at, consecutive_errors, last_error, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (resource) DO UPDATE SET
		    last_synced_at = EXCLUDED.last_synced_at,
		    last_full_synced_at = EXCLUDED.last_full_synced_at,
		    next_sync_at = EXCLUDED.next_sync_at,
		    consecutive_errors = EXCLUDED.consecutive_errors,
		    last_error = EXCLUDED.last_error,
		    updated_at = EXCLUDED.updated_at`,
		string(state.Resource), nullTime(state.LastSyncedAt), nullTime(state.LastFullSyncAt), nullTime(state.NextSyncAt),
		state.ConsecutiveErrors, nullString(state.LastError), state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("同期状態のUPSERTに失敗しました: %w", err)
	}
	return nil
}

// nullTime はゼロ値の時刻をNULLに変換する。
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// compile-time interface check
var _ SyncStateRepository = (*PostgresSyncStateRepo)(nil)
