package syncer

import (
	"testing"
	"time"

	"github.com/hitoshi/pressgate/internal/model"
)

// --- リトライ・バックオフ戦略のテスト ---

func TestClassifyHTTPStatus_OK(t *testing.T) {
	if result := ClassifyHTTPStatus(200); result != SyncResultOK {
		t.Errorf("200 は SyncResultOK を返すべき, got %v", result)
	}
}

func TestClassifyHTTPStatus_AuthFailure(t *testing.T) {
	for _, code := range []int{401, 403} {
		if result := ClassifyHTTPStatus(code); result != SyncResultAuthFailure {
			t.Errorf("%d は SyncResultAuthFailure を返すべき, got %v", code, result)
		}
	}
}

func TestClassifyHTTPStatus_Backoff(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503} {
		if result := ClassifyHTTPStatus(code); result != SyncResultBackoff {
			t.Errorf("%d は SyncResultBackoff を返すべき, got %v", code, result)
		}
	}
}

func TestClassifyHTTPStatus_Unknown(t *testing.T) {
	for _, code := range []int{301, 404, 418} {
		if result := ClassifyHTTPStatus(code); result != SyncResultUnknown {
			t.Errorf("%d は SyncResultUnknown を返すべき, got %v", code, result)
		}
	}
}

func TestCalculateBackoff_Exponential(t *testing.T) {
	tests := []struct {
		errors int
		want   time.Duration
	}{
		{0, 1 * time.Minute},
		{1, 2 * time.Minute},
		{2, 4 * time.Minute},
		{3, 8 * time.Minute},
		{10, 2 * time.Hour},  // 上限に到達
		{100, 2 * time.Hour}, // 上限を超えない
	}

	for _, tt := range tests {
		if got := CalculateBackoff(tt.errors); got != tt.want {
			t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.errors, got, tt.want)
		}
	}
}

func TestApplyBackoff_IncrementsErrors(t *testing.T) {
	state := &model.SyncState{Resource: model.SyncResourcePosts}

	ApplyBackoff(state, "HTTPリクエスト失敗")

	if state.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", state.ConsecutiveErrors)
	}
	if state.LastError != "HTTPリクエスト失敗" {
		t.Errorf("LastError = %q", state.LastError)
	}
	if !state.NextSyncAt.After(time.Now()) {
		t.Error("NextSyncAt が未来に設定されていない")
	}
}

func TestApplyBackoff_DelayGrows(t *testing.T) {
	state := &model.SyncState{Resource: model.SyncResourcePosts}

	ApplyBackoff(state, "1回目")
	first := state.NextSyncAt

	ApplyBackoff(state, "2回目")
	second := state.NextSyncAt

	if !second.After(first) {
		t.Error("2回目のバックオフ遅延は1回目より長くなるべき")
	}
}

func TestApplyAuthFailure_UsesMaxBackoff(t *testing.T) {
	state := &model.SyncState{Resource: model.SyncResourcePosts}

	ApplyAuthFailure(state, 403)

	minExpected := time.Now().Add(2*time.Hour - time.Minute)
	if state.NextSyncAt.Before(minExpected) {
		t.Errorf("認証エラーは最大バックオフを適用すべき: NextSyncAt = %v", state.NextSyncAt)
	}
	if state.LastError == "" {
		t.Error("LastError が記録されていない")
	}
}

func TestApplySuccess_ResetsState(t *testing.T) {
	state := &model.SyncState{
		Resource:          model.SyncResourcePosts,
		ConsecutiveErrors: 5,
		LastError:         "過去のエラー",
	}

	syncedAt := time.Now()
	interval := 5 * time.Minute
	ApplySuccess(state, syncedAt, interval)

	if state.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", state.ConsecutiveErrors)
	}
	if state.LastError != "" {
		t.Errorf("LastError = %q, want empty", state.LastError)
	}
	if !state.LastSyncedAt.Equal(syncedAt) {
		t.Errorf("LastSyncedAt = %v, want %v", state.LastSyncedAt, syncedAt)
	}
	if !state.NextSyncAt.Equal(syncedAt.Add(interval)) {
		t.Errorf("NextSyncAt = %v", state.NextSyncAt)
	}
}
