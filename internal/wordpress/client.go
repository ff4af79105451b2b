// Package wordpress はWordPress REST API (wp/v2) のクライアントを提供する。
//
// 取得したcontent.rendered等のHTMLは未サニタイズのままであり、
// このパッケージは信頼境界の外側のデータを運ぶだけに徹する。
// サニタイズは取り込みサービス側で行う。
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// userAgent はアップストリームへ送るUser-Agentヘッダ。
const userAgent = "Pressgate/1.0 WordPress Gateway"

// wpTimeLayout はwp/v2の*_gmtフィールドの日時形式。タイムゾーン表記を持たない。
const wpTimeLayout = "2006-01-02T15:04:05"

// UpstreamValidator はアップストリームURL検証のインターフェース。
type UpstreamValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Client はWordPress REST APIクライアント。
// page/per_pageによるページネーションとX-WP-TotalPagesヘッダによる
// 終端判定、modified_afterによる差分取得をサポートする。
type Client struct {
	baseURL     string
	guard       UpstreamValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	perPage     int
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはWordPressサイトのルート（例: https://cms.example.com）。
// wp-json/wp/v2のプレフィックスはクライアント側で付与する。
func NewClient(
	baseURL string,
	guard UpstreamValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	perPage int,
) (*Client, error) {
	if err := guard.ValidateURL(baseURL); err != nil {
		return nil, fmt.Errorf("アップストリームURL検証に失敗: %w", err)
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		guard:       guard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		perPage:     perPage,
	}, nil
}

// BaseURL はクライアントのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListPosts は公開済みの投稿を全ページ取得する。
// modifiedAfterが非nilの場合、その日時以降に更新された投稿だけを取得する。
func (c *Client) ListPosts(ctx context.Context, modifiedAfter *time.Time) ([]Post, error) {
	query := url.Values{}
	query.Set("status", "publish")
	if modifiedAfter != nil {
		query.Set("modified_after", modifiedAfter.UTC().Format(wpTimeLayout))
	}

	var posts []Post
	err := c.listAll(ctx, "/wp-json/wp/v2/posts", query, func(body []byte) (int, error) {
		var page []Post
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		posts = append(posts, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ListPages は公開済みの固定ページを全ページ取得する。
func (c *Client) ListPages(ctx context.Context, modifiedAfter *time.Time) ([]Page, error) {
	query := url.Values{}
	query.Set("status", "publish")
	if modifiedAfter != nil {
		query.Set("modified_after", modifiedAfter.UTC().Format(wpTimeLayout))
	}

	var pages []Page
	err := c.listAll(ctx, "/wp-json/wp/v2/pages", query, func(body []byte) (int, error) {
		var page []Page
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		pages = append(pages, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// ListCategories はカテゴリを全ページ取得する。
// wp/v2/categoriesはmodified_afterをサポートしないため常に全件取得となる。
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.listAll(ctx, "/wp-json/wp/v2/categories", url.Values{}, func(body []byte) (int, error) {
		var page []Category
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		categories = append(categories, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// ListAuthors は著者を全ページ取得する。
// 公開APIのwp/v2/usersは記事を持つユーザーのみを返す。
func (c *Client) ListAuthors(ctx context.Context) ([]Author, error) {
	var authors []Author
	err := c.listAll(ctx, "/wp-json/wp/v2/users", url.Values{}, func(body []byte) (int, error) {
		var page []Author
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		authors = append(authors, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return authors, nil
}

// ListMedia はメディアを全ページ取得する。
func (c *Client) ListMedia(ctx context.Context, modifiedAfter *time.Time) ([]Media, error) {
	query := url.Values{}
	if modifiedAfter != nil {
		query.Set("modified_after", modifiedAfter.UTC().Format(wpTimeLayout))
	}

	var media []Media
	err := c.listAll(ctx, "/wp-json/wp/v2/media", query, func(body []byte) (int, error) {
		var page []Media
		if err := json.Unmarshal(body, &page); err != nil {
			return 0, err
		}
		media = append(media, page...)
		return len(page), nil
	})
	if err != nil {
		return nil, err
	}
	return media, nil
}

// listAll はpage=1から開始してX-WP-TotalPagesヘッダが示す最終ページまで
// 順に取得し、各ページのボディをdecodeに渡す。
// decodeはボディに含まれていたレコード数を返す。
func (c *Client) listAll(ctx context.Context, path string, baseQuery url.Values, decode func(body []byte) (int, error)) error {
	client := c.guard.NewSafeClient(c.timeout, c.maxBodySize)

	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		query := url.Values{}
		for k, vs := range baseQuery {
			query[k] = vs
		}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(c.perPage))
		query.Set("orderby", "id")
		query.Set("order", "asc")

		body, header, err := c.get(ctx, client, path, query)
		if err != nil {
			return err
		}

		count, err := decode(body)
		if err != nil {
			c.logger.Error("レスポンスのパースに失敗しました",
				slog.String("path", path),
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("レスポンスのパースに失敗: %w", err)
		}

		// 1ページ目のヘッダで総ページ数を確定する
		if page == 1 {
			if tp := header.Get("X-WP-TotalPages"); tp != "" {
				if parsed, parseErr := strconv.Atoi(tp); parseErr == nil && parsed > 0 {
					totalPages = parsed
				}
			}
		}

		c.logger.Debug("WordPress APIページを取得しました",
			slog.String("path", path),
			slog.Int("page", page),
			slog.Int("total_pages", totalPages),
			slog.Int("records", count),
		)

		// ヘッダが欠けていても空ページで終端とみなす
		if count == 0 {
			break
		}
	}

	return nil
}

// get は1回のGETリクエストを実行し、サイズ上限付きでボディを読み取る。
func (c *Client) get(ctx context.Context, client *http.Client, path string, query url.Values) ([]byte, http.Header, error) {
	reqURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		c.logger.Error("HTTPリクエストに失敗しました",
			slog.String("url", reqURL),
			slog.String("error", err.Error()),
		)
		return nil, nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("予期しないHTTPステータスコード",
			slog.String("url", reqURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, nil, &StatusError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	c.logger.Debug("WordPress APIリクエストが完了しました",
		slog.String("url", reqURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return body, resp.Header, nil
}

// StatusError は200以外のHTTPステータスを表すエラー。
// 同期ワーカーはステータスコードに応じてバックオフ判定を行う。
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d from %s", e.StatusCode, e.URL)
}

// ParseTime はwp/v2の*_gmtフィールドの日時文字列をUTCとしてパースする。
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}
	t, err := time.ParseInLocation(wpTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid WordPress time %q: %w", s, err)
	}
	return t, nil
}
