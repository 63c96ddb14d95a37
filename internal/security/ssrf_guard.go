package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// UpstreamGuard は中継先APIへの接続を検証する。
// 起動時の静的検証と、接続時にDNS解決後のIPを検証するHTTPクライアントの両方を提供する。
type UpstreamGuard interface {
	// ValidateURL は中継先のベースURLを静的に検証する。
	ValidateURL(rawURL string) error

	// NewSafeClient はプライベート・ループバック・リンクローカル宛ての接続を
	// Dialerレベルで拒否するHTTPクライアントを生成する。
	// リダイレクトは追従せず、そのまま呼び出し元に返す。
	NewSafeClient(timeout time.Duration) *http.Client
}

var allowedSchemes = []string{"http", "https"}

var blockedPrefixes = mustParsePrefixes(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	// クラウドメタデータ (169.254.169.254) を含む
	"169.254.0.0/16",
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

var blockedHostnames = map[string]struct{}{
	"localhost": {},
}

func mustParsePrefixes(cidrs ...string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefixes = append(prefixes, netip.MustParsePrefix(cidr))
	}
	return prefixes
}

type upstreamGuard struct {
	ports []int
}

// NewUpstreamGuard はUpstreamGuardを生成する。
// portsを省略した場合は80と443のみ許可する。
func NewUpstreamGuard(ports ...int) UpstreamGuard {
	if len(ports) == 0 {
		ports = []int{80, 443}
	}
	return &upstreamGuard{ports: ports}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
func (g *upstreamGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.ports...).
		Build()

	client := safeurl.Client(config).Client
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return client
}

// ValidateURL はスキーム、ホスト、IPアドレス範囲を検証する。
// ホスト名のDNS解決は行わない。
func (g *upstreamGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("中継先URLが空です")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("中継先URLが不正です: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("許可されていないスキームです: %q", scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("中継先URLにホストがありません: %s", rawURL)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("中継先に指定できないIPアドレスです: %s", addr)
		}
		return nil
	}

	if _, blocked := blockedHostnames[strings.ToLower(host)]; blocked {
		return fmt.Errorf("中継先に指定できないホストです: %s", host)
	}
	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
