package logger

import (
	"slices"
	"strings"
)

// Enumerated field values. A status outside knownStatus is written as given;
// an outcome outside knownOutcome is dropped so dashboards only see known values.
var (
	knownStatus = []string{"ok", "fail", "skip", "retry", "rate_limited", "cancelled"}

	// knownOutcome covers handler summaries and every dispatcher outcome.
	knownOutcome = []string{
		"ok", "fail", "ignored", "usage", "denied",
		"permission_denied", "staff_only_denied",
		"executed", "execution_error",
		"cancelled", "rate_limited",
	}
)

// normalizeLevel upper-cases level names and folds WARNING into WARN.
// slog offsets such as INFO+2 pass through unchanged.
func normalizeLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "":
		return "INFO"
	case "WARNING":
		return "WARN"
	default:
		return l
	}
}

func normalizeStatus(status string) (string, bool) {
	return lookup(knownStatus, status)
}

func normalizeOutcome(outcome string) (string, bool) {
	return lookup(knownOutcome, outcome)
}

func lookup(known []string, v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	return v, v != "" && slices.Contains(known, v)
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"platform",
	"guild_id",
	"channel_id",
	"message_id",
	"user_id",
	"invoked_by",
	"handler",
	"command",
	"token",
	"mode",
	"provenance",
	"plugin",
	"operation",
	"op",
	"outcome",
	"reason",
	"missing",
	"duration_ms",
	"count",
	"locale",
	"prefix",
	"payload",
	"username",
	"listen",
	"public_url",
	"http_code",
	"db",
	"driver",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"rate_limited",
}
