package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
	"github.com/hitoshi/pressgate/internal/repository"
)

// ResourceSyncer はリソース同期の実行インターフェース。
type ResourceSyncer interface {
	// Sync は指定リソースの同期を1回実行する。
	Sync(ctx context.Context, resource model.SyncResource) error
}

// ChangeProber はアップストリームの軽量な更新検知インターフェース。
type ChangeProber interface {
	// LatestUpdate はサイトフィードの最新更新日時を返す。
	LatestUpdate(ctx context.Context) (time.Time, error)
}

// allResources は同期対象の全リソース種別。
var allResources = []model.SyncResource{
	model.SyncResourceCategories,
	model.SyncResourceAuthors,
	model.SyncResourceMedia,
	model.SyncResourcePosts,
	model.SyncResourcePages,
}

// probeSkippable はフィードプローブで更新なしと判定された場合に
// スキップできるリソース種別。カテゴリ等はフィードに現れないため対象外。
var probeSkippable = map[model.SyncResource]bool{
	model.SyncResourcePosts: true,
	model.SyncResourcePages: true,
}

// Scheduler は同期サイクルのスケジューリングと並列制御を行う。
// ティッカー起動で同期対象リソースを判定し、semaphoreパターンで
// 最大並列数を制御しながらリソース別の同期を実行する。
type Scheduler struct {
	stateRepo      repository.SyncStateRepository
	syncer         ResourceSyncer
	probe          ChangeProber
	logger         *slog.Logger
	maxConcurrency int
	fullInterval   time.Duration
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// probeはnilでもよく、その場合は更新検知をスキップして常に同期する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
// fullIntervalが0以下の場合はDefaultFullSyncIntervalを使用する。
func NewScheduler(
	stateRepo repository.SyncStateRepository,
	s ResourceSyncer,
	probe ChangeProber,
	logger *slog.Logger,
	maxConcurrency int,
	fullInterval time.Duration,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if fullInterval <= 0 {
		fullInterval = DefaultFullSyncInterval
	}
	return &Scheduler{
		stateRepo:      stateRepo,
		syncer:         s,
		probe:          probe,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		fullInterval:   fullInterval,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は同期対象リソースを判定し、並列で同期を実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	due, err := s.dueResources(ctx)
	if err != nil {
		return err
	}

	if len(due) == 0 {
		s.logger.Info("同期対象のリソースはありません")
		return nil
	}

	s.logger.Info("同期サイクルを開始します",
		slog.Int("resource_count", len(due)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, resource := range due {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(r model.SyncResource) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.syncer.Sync(ctx, r); err != nil {
				s.logger.Error("リソース同期に失敗しました",
					slog.String("resource", string(r)),
					slog.String("error", err.Error()),
				)
			}
		}(resource)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("同期サイクルが完了しました",
		slog.Int("resource_count", len(due)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// dueResources は今回のサイクルで同期すべきリソースを返す。
// next_sync_atが未来のリソース（バックオフ中）は除外し、
// フィードプローブで更新なしと判定された場合は投稿・固定ページも除外する。
func (s *Scheduler) dueResources(ctx context.Context) ([]model.SyncResource, error) {
	now := time.Now()
	freshUntil := s.probeFreshUntil(ctx)

	var due []model.SyncResource
	for _, resource := range allResources {
		state, err := s.stateRepo.Find(ctx, resource)
		if err != nil {
			return nil, err
		}

		if state != nil && state.NextSyncAt.After(now) {
			continue
		}

		// プローブの最新更新日時が前回同期より古ければ変更なしとみなす。
		// ただしプローブは削除を検知できないため、全件同期が
		// 必要なリソースはスキップしない。
		if !freshUntil.IsZero() && probeSkippable[resource] &&
			state != nil && !state.LastSyncedAt.IsZero() &&
			!freshUntil.After(state.LastSyncedAt) &&
			!FullSyncDue(state, s.fullInterval) {
			s.logger.Debug("フィードプローブにより同期をスキップします",
				slog.String("resource", string(resource)),
				slog.Time("latest_update", freshUntil),
				slog.Time("last_synced_at", state.LastSyncedAt),
			)
			continue
		}

		due = append(due, resource)
	}

	return due, nil
}

// probeFreshUntil はフィードプローブを実行して最新更新日時を返す。
// プローブが無効・失敗・日時不明の場合はゼロ値を返し、通常同期にフォールバックする。
func (s *Scheduler) probeFreshUntil(ctx context.Context) time.Time {
	if s.probe == nil {
		return time.Time{}
	}

	latest, err := s.probe.LatestUpdate(ctx)
	if err != nil {
		s.logger.Warn("フィードプローブに失敗したため通常同期を実行します",
			slog.String("error", err.Error()),
		)
		return time.Time{}
	}

	return latest
}
