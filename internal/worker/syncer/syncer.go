// Package syncer はWordPressコンテンツのバックグラウンド同期処理を提供する。
// スケジューラ、リソース別シンカー、リトライ/バックオフ戦略を含む。
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
	"github.com/hitoshi/pressgate/internal/repository"
	"github.com/hitoshi/pressgate/internal/wordpress"
)

// ContentLister はWordPress REST APIからのリソース取得インターフェース。
type ContentLister interface {
	ListPosts(ctx context.Context, modifiedAfter *time.Time) ([]wordpress.Post, error)
	ListPages(ctx context.Context, modifiedAfter *time.Time) ([]wordpress.Page, error)
	ListCategories(ctx context.Context) ([]wordpress.Category, error)
	ListAuthors(ctx context.Context) ([]wordpress.Author, error)
	ListMedia(ctx context.Context, modifiedAfter *time.Time) ([]wordpress.Media, error)
}

// ContentIngester はサニタイズ付きUPSERT処理のインターフェース。
type ContentIngester interface {
	UpsertPosts(ctx context.Context, posts []wordpress.Post) (int, int, error)
	UpsertPages(ctx context.Context, pages []wordpress.Page) (int, int, error)
	UpsertCategories(ctx context.Context, categories []wordpress.Category) (int, int, error)
	UpsertAuthors(ctx context.Context, authors []wordpress.Author) (int, int, error)
	UpsertMedia(ctx context.Context, media []wordpress.Media) (int, int, error)
}

// MetricsRecorder は同期メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordSyncRun(resource string, success bool, duration time.Duration)
	RecordSyncRecords(resource string, inserted, updated int)
	RecordUpstreamStatus(statusCode int)
}

// DefaultFullSyncInterval は全件同期のデフォルト間隔。
const DefaultFullSyncInterval = 24 * time.Hour

// Syncer は1リソース種別の同期サイクルを実行する。
// 差分取得カーソル（last_synced_at）の管理、全件同期カーソル
// （last_full_synced_at）の管理、エラー時のバックオフ適用、
// メトリクスの記録を行う。
type Syncer struct {
	client       ContentLister
	ingest       ContentIngester
	stateRepo    repository.SyncStateRepository
	metrics      MetricsRecorder
	logger       *slog.Logger
	interval     time.Duration
	fullInterval time.Duration
}

// NewSyncer はSyncerの新しいインスタンスを生成する。
// fullIntervalが0以下の場合はDefaultFullSyncIntervalを使用する。
func NewSyncer(
	client ContentLister,
	ingest ContentIngester,
	stateRepo repository.SyncStateRepository,
	metrics MetricsRecorder,
	logger *slog.Logger,
	interval time.Duration,
	fullInterval time.Duration,
) *Syncer {
	if fullInterval <= 0 {
		fullInterval = DefaultFullSyncInterval
	}
	return &Syncer{
		client:       client,
		ingest:       ingest,
		stateRepo:    stateRepo,
		metrics:      metrics,
		logger:       logger,
		interval:     interval,
		fullInterval: fullInterval,
	}
}

// FullSyncDue は全件同期を実行すべきかを判定する。
// 差分同期はアップストリーム側の削除を検出できず、未変更レコードの
// synced_atも進まない。前回の全件同期からintervalが経過したら
// 差分カーソルを無視して全件を取り直す。
func FullSyncDue(state *model.SyncState, interval time.Duration) bool {
	if state == nil {
		return true
	}
	if state.LastSyncedAt.IsZero() || state.LastFullSyncAt.IsZero() {
		return true
	}
	return time.Since(state.LastFullSyncAt) >= interval
}

// Sync は指定リソースの同期を1回実行する。
// 前回の同期カーソルから差分取得し、成功時はカーソルを進め、
// 失敗時はバックオフを適用する。
func (s *Syncer) Sync(ctx context.Context, resource model.SyncResource) error {
	start := time.Now()

	state, err := s.stateRepo.Find(ctx, resource)
	if err != nil {
		return fmt.Errorf("同期状態の取得に失敗: %w", err)
	}
	if state == nil {
		state = &model.SyncState{Resource: resource}
	}

	// カーソルはサイクル開始時刻で進める。実行中の更新を取りこぼさないよう
	// 完了時刻ではなく開始時刻を採用する。
	full := s.fullSyncDue(resource, state)
	inserted, updated, syncErr := s.syncResource(ctx, resource, state, full)

	duration := time.Since(start)

	if syncErr != nil {
		s.applyFailure(state, syncErr)
		if s.metrics != nil {
			s.metrics.RecordSyncRun(string(resource), false, duration)
		}
		if updateErr := s.stateRepo.Upsert(ctx, state); updateErr != nil {
			s.logger.Error("同期状態の更新に失敗しました",
				slog.String("resource", string(resource)),
				slog.String("error", updateErr.Error()),
			)
		}
		s.logger.Error("リソース同期に失敗しました",
			slog.String("resource", string(resource)),
			slog.Int("consecutive_errors", state.ConsecutiveErrors),
			slog.String("error", syncErr.Error()),
		)
		return syncErr
	}

	ApplySuccess(state, start, s.interval)
	if full {
		state.LastFullSyncAt = start
	}
	if err := s.stateRepo.Upsert(ctx, state); err != nil {
		return fmt.Errorf("同期状態の更新に失敗: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSyncRun(string(resource), true, duration)
		s.metrics.RecordSyncRecords(string(resource), inserted, updated)
	}

	s.logger.Info("リソース同期が完了しました",
		slog.String("resource", string(resource)),
		slog.Bool("full", full),
		slog.Int("inserted", inserted),
		slog.Int("updated", updated),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// fullSyncDue は今回のサイクルを全件同期にすべきかを判定する。
// カテゴリ・著者はmodified_after非対応で毎回全件取得になるため常にtrue。
func (s *Syncer) fullSyncDue(resource model.SyncResource, state *model.SyncState) bool {
	switch resource {
	case model.SyncResourceCategories, model.SyncResourceAuthors:
		return true
	}
	return FullSyncDue(state, s.fullInterval)
}

// syncResource はリソース種別ごとの取得とUPSERTを実行する。
// fullの場合は差分カーソルを使わず全件を取得する。
func (s *Syncer) syncResource(ctx context.Context, resource model.SyncResource, state *model.SyncState, full bool) (int, int, error) {
	var modifiedAfter *time.Time
	if !full && !state.LastSyncedAt.IsZero() {
		t := state.LastSyncedAt
		modifiedAfter = &t
	}

	switch resource {
	case model.SyncResourcePosts:
		posts, err := s.client.ListPosts(ctx, modifiedAfter)
		if err != nil {
			return 0, 0, err
		}
		return s.ingest.UpsertPosts(ctx, posts)

	case model.SyncResourcePages:
		pages, err := s.client.ListPages(ctx, modifiedAfter)
		if err != nil {
			return 0, 0, err
		}
		return s.ingest.UpsertPages(ctx, pages)

	case model.SyncResourceCategories:
		categories, err := s.client.ListCategories(ctx)
		if err != nil {
			return 0, 0, err
		}
		return s.ingest.UpsertCategories(ctx, categories)

	case model.SyncResourceAuthors:
		authors, err := s.client.ListAuthors(ctx)
		if err != nil {
			return 0, 0, err
		}
		return s.ingest.UpsertAuthors(ctx, authors)

	case model.SyncResourceMedia:
		media, err := s.client.ListMedia(ctx, modifiedAfter)
		if err != nil {
			return 0, 0, err
		}
		return s.ingest.UpsertMedia(ctx, media)

	default:
		return 0, 0, fmt.Errorf("未知のリソース種別: %s", resource)
	}
}

// applyFailure はエラー内容に応じたバックオフを状態に適用する。
func (s *Syncer) applyFailure(state *model.SyncState, syncErr error) {
	var statusErr *wordpress.StatusError
	if errors.As(syncErr, &statusErr) {
		if s.metrics != nil {
			s.metrics.RecordUpstreamStatus(statusErr.StatusCode)
		}
		if ClassifyHTTPStatus(statusErr.StatusCode) == SyncResultAuthFailure {
			ApplyAuthFailure(state, statusErr.StatusCode)
			return
		}
	}
	ApplyBackoff(state, syncErr.Error())
}
