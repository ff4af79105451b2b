package wordpress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedProbe はWordPressサイトのRSSフィード（/feed/）を使った軽量な更新検知を行う。
// REST APIの全リソース走査よりはるかに安価なため、同期サイクルの前段で
// フィードの最新更新日時を確認し、前回同期以降に変化がなければ
// 投稿・固定ページの差分取得をスキップできる。
// フィードが取得・パースできない場合は検知をあきらめて通常同期にフォールバックする。
type FeedProbe struct {
	feedURL     string
	guard       UpstreamValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFeedProbe はFeedProbeの新しいインスタンスを生成する。
// siteURLはWordPressサイトのルート。フィードURLは /feed/ を付与して導出する。
func NewFeedProbe(
	siteURL string,
	guard UpstreamValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *FeedProbe {
	return &FeedProbe{
		feedURL:     siteURL + "/feed/",
		guard:       guard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// LatestUpdate はサイトフィードの最新更新日時を返す。
// フィード自体のlastBuildDateと各記事の公開日時のうち最も新しいものを採用する。
// 日時情報が一切得られない場合はゼロ値を返す。
func (p *FeedProbe) LatestUpdate(ctx context.Context) (time.Time, error) {
	if err := p.guard.ValidateURL(p.feedURL); err != nil {
		return time.Time{}, fmt.Errorf("フィードURL検証に失敗: %w", err)
	}

	client := p.guard.NewSafeClient(p.timeout, p.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, &StatusError{StatusCode: resp.StatusCode, URL: p.feedURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		return time.Time{}, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return time.Time{}, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	var latest time.Time
	if feed.UpdatedParsed != nil {
		latest = *feed.UpdatedParsed
	}
	if feed.PublishedParsed != nil && feed.PublishedParsed.After(latest) {
		latest = *feed.PublishedParsed
	}
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		if item.PublishedParsed != nil && item.PublishedParsed.After(latest) {
			latest = *item.PublishedParsed
		}
		if item.UpdatedParsed != nil && item.UpdatedParsed.After(latest) {
			latest = *item.UpdatedParsed
		}
	}

	p.logger.Debug("フィードプローブが完了しました",
		slog.String("url", p.feedURL),
		slog.Int("records", len(feed.Items)),
		slog.Time("latest_update", latest),
	)

	return latest, nil
}
