package ecommerce

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)((?:access_token|refresh_token|client_secret|consumer_secret|consumer_key|api_key|x-api-key|token)["']?\s*[:=]\s*["']?)[^"'&\s,}]+`),
}

// redact removes known secrets and token-shaped values from s
func redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if len(secret) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, secret, redactedPlaceholder)
	}
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, "${1}"+redactedPlaceholder)
	}
	return s
}
