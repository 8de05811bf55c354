package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

// sensitiveKeys are matched case-insensitively, ignoring '_' and '-'.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"secret":        {},
	"api_key":       {},
	"apikey":        {},
	"authorization": {},
	"credential":    {},
	"private_key":   {},
	"access_token":  {},
	"refresh_token": {},
	"auth":          {},
	"key":           {},
	"pass":          {},
	"pwd":           {},
	"privatekey":    {},
	"secretkey":     {},
	"cookie":        {},
	"code":          {},
	"client_secret": {},
	"id_token":      {},
}

var keyNormalizer = strings.NewReplacer("_", "", "-", "")

// IsSensitive reports whether values logged under key must be redacted.
func IsSensitive(key string) bool {
	normalized := keyNormalizer.Replace(strings.ToLower(key))
	for k := range sensitiveKeys {
		if keyNormalizer.Replace(k) == normalized {
			return true
		}
	}
	return false
}

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values yield Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a JSON ("json") or text logger writing to w with sensitive
// attributes redacted.
func New(format, level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if IsSensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}
