package logging

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// MaskAddress keeps the first and last four hex digits of a wallet address,
// enough to correlate log lines without printing the full account.
func MaskAddress(key string, addr common.Address) slog.Attr {
	if addr == (common.Address{}) {
		return slog.String(key, "")
	}
	hex := addr.Hex()
	return slog.String(key, hex[:6]+"…"+hex[len(hex)-4:])
}

// MaskURL keeps the scheme and host of an endpoint. Hosted RPC providers put
// API keys in the path, query or userinfo, so those are dropped.
func MaskURL(key, raw string) slog.Attr {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return slog.String(key, "")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return slog.String(key, RedactedValue)
	}
	masked := parsed.Scheme + "://" + parsed.Host
	if parsed.User != nil || (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" {
		masked += "/" + RedactedValue
	}
	return slog.String(key, masked)
}
