package syncer

import (
	"fmt"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
)

// SyncResult はHTTPステータスコードに基づく同期結果の分類。
type SyncResult int

const (
	// SyncResultOK は同期成功（200）。
	SyncResultOK SyncResult = iota
	// SyncResultBackoff はバックオフが必要なステータス（429/5xx）。
	SyncResultBackoff
	// SyncResultAuthFailure は認証・認可エラー（401/403）。
	// WordPress側の設定変更が必要なため最大バックオフを適用する。
	SyncResultAuthFailure
	// SyncResultUnknown は未知のステータスコード。
	SyncResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延。
	initialBackoff = 1 * time.Minute
	// maxBackoff は指数バックオフの最大遅延。
	maxBackoff = 2 * time.Hour
)

// ClassifyHTTPStatus はHTTPステータスコードを同期結果に分類する。
func ClassifyHTTPStatus(statusCode int) SyncResult {
	switch {
	case statusCode == 200:
		return SyncResultOK
	case statusCode == 401 || statusCode == 403:
		return SyncResultAuthFailure
	case statusCode == 429:
		return SyncResultBackoff
	case statusCode >= 500:
		return SyncResultBackoff
	default:
		return SyncResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回1分、2倍ずつ増加、最大2時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplyBackoff は同期状態にバックオフ戦略を適用する。
// 連続エラー回数をインクリメントし、指数バックオフでnext_sync_atを設定する。
func ApplyBackoff(state *model.SyncState, reason string) {
	state.ConsecutiveErrors++
	state.LastError = reason
	delay := CalculateBackoff(state.ConsecutiveErrors - 1)
	state.NextSyncAt = time.Now().Add(delay)
	state.UpdatedAt = time.Now()
}

// ApplyAuthFailure は認証エラー時に最大バックオフを適用する。
func ApplyAuthFailure(state *model.SyncState, statusCode int) {
	state.ConsecutiveErrors++
	state.LastError = fmt.Sprintf("認証エラー (HTTP %d): WordPress側の公開設定を確認してください", statusCode)
	state.NextSyncAt = time.Now().Add(maxBackoff)
	state.UpdatedAt = time.Now()
}

// ApplySuccess は同期成功時に状態をリセットする。
// 連続エラー回数を0に戻し、last_synced_atとnext_sync_atを更新する。
func ApplySuccess(state *model.SyncState, syncedAt time.Time, interval time.Duration) {
	state.ConsecutiveErrors = 0
	state.LastError = ""
	state.LastSyncedAt = syncedAt
	state.NextSyncAt = syncedAt.Add(interval)
	state.UpdatedAt = time.Now()
}
