package sqlstore

import (
	"strings"

	"github.com/goliatone/go-formchimp/core"
)

// RedactMetadata strips credentials and masks subscriber email addresses
// before activity metadata is persisted.
func RedactMetadata(metadata map[string]any) map[string]any {
	redacted := core.RedactSensitiveMap(metadata)
	for key, value := range redacted {
		if !isEmailKey(key) {
			continue
		}
		if email, ok := value.(string); ok {
			redacted[key] = maskEmail(email)
		}
	}
	return redacted
}

func isEmailKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	return key == "email" || key == "email_address"
}

// maskEmail keeps the first character of the local part and the domain.
func maskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return core.RedactedValue
	}
	return email[:1] + "***" + email[at:]
}
