package wordpress

// Rendered はWordPress REST APIのレンダリング済みフィールドを表す。
// wp/v2のtitle/content/excerptは {"rendered": "..."} 形式で返される。
type Rendered struct {
	Rendered  string `json:"rendered"`
	Protected bool   `json:"protected,omitempty"`
}

// Post はwp/v2/postsのレスポンスを表すDTO。
// content.renderedは未サニタイズのHTMLであり、信頼できない入力として扱う。
type Post struct {
	ID            int64    `json:"id"`
	Date          string   `json:"date_gmt"`
	Modified      string   `json:"modified_gmt"`
	Slug          string   `json:"slug"`
	Status        string   `json:"status"`
	Link          string   `json:"link"`
	Title         Rendered `json:"title"`
	Content       Rendered `json:"content"`
	Excerpt       Rendered `json:"excerpt"`
	Author        int64    `json:"author"`
	FeaturedMedia int64    `json:"featured_media"`
	Categories    []int64  `json:"categories"`
	Tags          []int64  `json:"tags"`
}

// Page はwp/v2/pagesのレスポンスを表すDTO。
type Page struct {
	ID       int64    `json:"id"`
	Date     string   `json:"date_gmt"`
	Modified string   `json:"modified_gmt"`
	Slug     string   `json:"slug"`
	Status   string   `json:"status"`
	Link     string   `json:"link"`
	Title    Rendered `json:"title"`
	Content  Rendered `json:"content"`
	Parent   int64    `json:"parent"`
	Order    int      `json:"menu_order"`
}

// Category はwp/v2/categoriesのレスポンスを表すDTO。
type Category struct {
	ID          int64  `json:"id"`
	Count       int    `json:"count"`
	Description string `json:"description"`
	Link        string `json:"link"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Parent      int64  `json:"parent"`
}

// Author はwp/v2/usersのレスポンスを表すDTO。
// 公開APIでは記事を持つユーザーのみが返される。
type Author struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Link        string            `json:"link"`
	AvatarURLs  map[string]string `json:"avatar_urls"`
}

// MediaSize はメディアの1サイズ分のメタデータ。
type MediaSize struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SourceURL string `json:"source_url"`
	MimeType  string `json:"mime_type"`
}

// MediaDetails はwp/v2/mediaのmedia_detailsフィールド。
type MediaDetails struct {
	Width  int                  `json:"width"`
	Height int                  `json:"height"`
	Sizes  map[string]MediaSize `json:"sizes"`
}

// Media はwp/v2/mediaのレスポンスを表すDTO。
type Media struct {
	ID           int64        `json:"id"`
	Date         string       `json:"date_gmt"`
	Modified     string       `json:"modified_gmt"`
	Slug         string       `json:"slug"`
	Link         string       `json:"link"`
	Title        Rendered     `json:"title"`
	AltText      string       `json:"alt_text"`
	MimeType     string       `json:"mime_type"`
	SourceURL    string       `json:"source_url"`
	MediaDetails MediaDetails `json:"media_details"`
}
