// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrUnsafeURL は取り込み対象として許可されないURLを表す。
var ErrUnsafeURL = errors.New("unsafe source url")

// blockedPrefixes は取り込みワーカーから到達させないネットワーク範囲。
// RFC 1918、ループバック、リンクローカル（クラウドメタデータ含む）、
// CGNAT、IPv6のユニークローカル。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// blockedHostSuffixes はDNS解決前に拒否するホスト名の接尾辞。
var blockedHostSuffixes = []string{".localhost", ".internal", ".local"}

// SourceGuard は奨学金配信元URLの事前検証と、
// SSRF防止付きHTTPクライアントの生成を行う。
type SourceGuard struct {
	ports   []int
	schemes []string
}

// NewSSRFGuard は http/https の80・443番ポートのみを許可するSourceGuardを返す。
func NewSSRFGuard() *SourceGuard {
	return &SourceGuard{
		ports:   []int{80, 443},
		schemes: []string{"http", "https"},
	}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// 接続先IPの検証はsafeurlがDNS解決後に行うため、DNS再バインディングも防げる。
// maxResponseSizeが正の場合、レスポンスボディはその長さで打ち切られる。
func (g *SourceGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(g.schemes...).
		SetAllowedPorts(g.ports...).
		Build()

	client := safeurl.Client(config).Client
	if maxResponseSize > 0 {
		base := client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		client.Transport = &limitedTransport{base: base, max: maxResponseSize}
	}
	return client
}

// ValidateURL は配信元URLを登録・取得前に静的に検証する。
// 返すエラーはErrUnsafeURLをラップする。
func (g *SourceGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty", ErrUnsafeURL)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeURL, err)
	}
	if !g.allowsScheme(u.Scheme) {
		return fmt.Errorf("%w: scheme %q", ErrUnsafeURL, u.Scheme)
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return fmt.Errorf("%w: no host", ErrUnsafeURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("%w: address %s", ErrUnsafeURL, addr)
		}
		return nil
	}

	if host == "localhost" {
		return fmt.Errorf("%w: host %s", ErrUnsafeURL, host)
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return fmt.Errorf("%w: host %s", ErrUnsafeURL, host)
		}
	}
	return nil
}

func (g *SourceGuard) allowsScheme(scheme string) bool {
	for _, s := range g.schemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

// isBlockedAddr はIPv4射影アドレスを展開したうえでブロック範囲と照合する。
func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// limitedTransport はレスポンスボディの読み取り量を制限する。
type limitedTransport struct {
	base http.RoundTripper
	max  int64
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body = &limitedBody{r: io.LimitReader(resp.Body, t.max), c: resp.Body}
	return resp, nil
}

type limitedBody struct {
	r io.Reader
	c io.Closer
}

func (b *limitedBody) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *limitedBody) Close() error               { return b.c.Close() }
