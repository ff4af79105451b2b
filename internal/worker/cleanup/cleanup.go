// Package cleanup は取り残しコンテンツの自動削除ジョブを提供する。
// 差分同期ではWordPress側で削除されたコンテンツを検出できないため、
// 全件同期で取り直されなかった行を定期バッチで回収する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
)

// StaleDeleter は取り残し行の削除操作を抽象化するインターフェース。
type StaleDeleter interface {
	DeleteNotSyncedSince(ctx context.Context, before time.Time) (int64, error)
}

// SyncStateFinder はリソース種別ごとの同期状態の参照インターフェース。
type SyncStateFinder interface {
	Find(ctx context.Context, resource model.SyncResource) (*model.SyncState, error)
}

// CleanupJob は同期から取り残されたコンテンツの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
//
// 削除カットオフはリソースごとに now-StaleAfter と直近の全件同期時刻の
// 早い方に揃える。差分同期だけが続いた期間はsynced_atが進まないため、
// 全件同期時刻を超えるカットオフはアップストリームに存在する行まで
// 削除してしまう。全件同期が一度も完了していないリソースはスキップする。
type CleanupJob struct {
	stateRepo  SyncStateFinder
	targets    []cleanupTarget
	logger     *slog.Logger
	StaleAfter time.Duration // 最終同期からの猶予期間（デフォルト: 7日）
}

// cleanupTarget は削除対象のリソースとリポジトリの組。
type cleanupTarget struct {
	resource model.SyncResource
	repo     StaleDeleter
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの猶予期間は7日。
func NewCleanupJob(
	postRepo, pageRepo, categoryRepo, authorRepo, mediaRepo StaleDeleter,
	stateRepo SyncStateFinder,
	logger *slog.Logger,
) *CleanupJob {
	return &CleanupJob{
		stateRepo: stateRepo,
		targets: []cleanupTarget{
			{model.SyncResourcePosts, postRepo},
			{model.SyncResourcePages, pageRepo},
			{model.SyncResourceCategories, categoryRepo},
			{model.SyncResourceAuthors, authorRepo},
			{model.SyncResourceMedia, mediaRepo},
		},
		logger:     logger,
		StaleAfter: 7 * 24 * time.Hour,
	}
}

// Run は猶予期間を超えて同期されていないコンテンツをリソース別に削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	deleted := make([]slog.Attr, 0, len(j.targets))

	for _, target := range j.targets {
		state, err := j.stateRepo.Find(ctx, target.resource)
		if err != nil {
			j.logger.Error("同期状態の取得に失敗しました",
				slog.String("resource", string(target.resource)),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("同期状態の取得に失敗: %w", err)
		}

		// 全件同期が完了するまでは削除しない。差分同期しか走っていない
		// 状態ではsynced_atの古さが削除済みの根拠にならない。
		if state == nil || state.LastFullSyncAt.IsZero() {
			j.logger.Warn("全件同期が未完了のためクリーンアップをスキップします",
				slog.String("resource", string(target.resource)),
			)
			continue
		}

		cutoff := start.Add(-j.StaleAfter)
		if state.LastFullSyncAt.Before(cutoff) {
			cutoff = state.LastFullSyncAt
		}

		count, err := target.repo.DeleteNotSyncedSince(ctx, cutoff)
		if err != nil {
			j.logger.Error("取り残しコンテンツの削除に失敗しました",
				slog.String("resource", string(target.resource)),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("取り残し%sの削除に失敗: %w", target.resource, err)
		}

		deleted = append(deleted, slog.Int64("deleted_"+string(target.resource), count))
	}

	duration := time.Since(start)
	attrs := append(deleted,
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	j.logger.LogAttrs(ctx, slog.LevelInfo, "クリーンアップジョブが完了しました", attrs...)

	return nil
}
