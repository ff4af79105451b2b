package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewUpstreamGuard はUpstreamGuardの生成をテストする。
func TestNewUpstreamGuard(t *testing.T) {
	guard := NewUpstreamGuard()
	if guard == nil {
		t.Fatal("NewUpstreamGuard() returned nil")
	}
}

// TestNewSafeClient はSSRF防止付きHTTPクライアントの生成をテストする。
func TestNewSafeClient(t *testing.T) {
	guard := NewUpstreamGuard()
	client := guard.NewSafeClient(10*time.Second, 10*1024*1024)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
}

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewUpstreamGuard()
	timeout := 15 * time.Second
	client := guard.NewSafeClient(timeout, 10*1024*1024)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClientHasTransport はSafeClientにカスタムTransportが設定されていることをテストする。
// safeurlはnet.DialerのControlフックでIPアドレス検証を行うため、
// Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewSafeClientHasTransport(t *testing.T) {
	guard := NewUpstreamGuard()
	client := guard.NewSafeClient(5*time.Second, 10*1024*1024)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewSafeClientBlocksLoopback はSafeClientがループバックへのリクエストをブロックすることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewUpstreamGuard()
	client := guard.NewSafeClient(5*time.Second, 10*1024*1024)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateURL_PublicURL は公開URLの検証が成功することをテストする。
func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewUpstreamGuard()

	publicURLs := []string{
		"https://example.com",
		"https://cms.example.com/wp-json/wp/v2",
		"http://blog.example.org/wp-json/wp/v2",
	}

	for _, u := range publicURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

// TestValidateURL_PrivateIP はプライベートIPアドレスの拒否をテストする。
func TestValidateURL_PrivateIP(t *testing.T) {
	guard := NewUpstreamGuard()

	privateURLs := []string{
		"http://10.0.0.1/wp-json/wp/v2",
		"http://10.255.255.255/wp-json/wp/v2",
		"http://172.16.0.1/wp-json/wp/v2",
		"http://172.31.255.255/wp-json/wp/v2",
		"http://192.168.0.1/wp-json/wp/v2",
		"http://192.168.1.100/wp-json/wp/v2",
	}

	for _, u := range privateURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for private IP", u)
			}
		})
	}
}

// TestValidateURL_LoopbackAddress はループバックアドレスの拒否をテストする。
func TestValidateURL_LoopbackAddress(t *testing.T) {
	guard := NewUpstreamGuard()

	loopbackURLs := []string{
		"http://127.0.0.1/wp-json/wp/v2",
		"http://127.0.0.2/wp-json/wp/v2",
		"http://localhost/wp-json/wp/v2",
	}

	for _, u := range loopbackURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for loopback address", u)
			}
		})
	}
}

// TestValidateURL_MetadataIP はクラウドメタデータIPアドレスの拒否をテストする。
func TestValidateURL_MetadataIP(t *testing.T) {
	guard := NewUpstreamGuard()

	metadataURLs := []string{
		"http://169.254.169.254/latest/meta-data/",                        // AWS
		"http://169.254.169.254/metadata/instance?api-version=2021-02-01", // Azure
		"http://169.254.169.254/computeMetadata/v1/",                      // GCP
	}

	for _, u := range metadataURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for metadata IP", u)
			}
		})
	}
}

// TestValidateURL_InvalidURL は無効なURLの検証が失敗することをテストする。
func TestValidateURL_InvalidURL(t *testing.T) {
	guard := NewUpstreamGuard()

	invalidURLs := []string{
		"",
		"not-a-url",
		"ftp://example.com/wp-json",
		"file:///etc/passwd",
		"gopher://example.com",
	}

	for _, u := range invalidURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for invalid URL", u)
			}
		})
	}
}

// TestValidateURL_IPv6Loopback はIPv6ループバックアドレスの拒否をテストする。
func TestValidateURL_IPv6Loopback(t *testing.T) {
	guard := NewUpstreamGuard()

	err := guard.ValidateURL("http://[::1]/wp-json/wp/v2")
	if err == nil {
		t.Error("ValidateURL(\"http://[::1]/wp-json/wp/v2\") should have returned error for IPv6 loopback")
	}
}

// TestValidateURL_ZeroAddress は0.0.0.0の拒否をテストする。
func TestValidateURL_ZeroAddress(t *testing.T) {
	guard := NewUpstreamGuard()

	err := guard.ValidateURL("http://0.0.0.0/wp-json/wp/v2")
	if err == nil {
		t.Error("ValidateURL(\"http://0.0.0.0/wp-json/wp/v2\") should have returned error for zero address")
	}
}

// TestUpstreamGuardInterface はUpstreamGuardがインターフェースを正しく実装していることをテストする。
func TestUpstreamGuardInterface(t *testing.T) {
	var _ UpstreamGuardService = NewUpstreamGuard()
}
