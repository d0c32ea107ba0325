package stringutil

import (
	"regexp"

	"github.com/qlty-sh/qlty/pkg/logger"
)

var sanitizeLog = logger.New("stringutil:sanitize")

var (
	// Match uppercase snake_case identifiers that look like secret env
	// vars (e.g. API_TOKEN, DEPLOY_KEY), excluding common install/runtime
	// environment variables that legitimately appear in tool output.
	secretNamePattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]*_[A-Z0-9_]+)\b`)

	// Match PascalCase identifiers ending with security-related
	// suffixes (e.g. GitHubToken, ApiKey, DeploySecret).
	pascalCaseSecretPattern = regexp.MustCompile(`\b([A-Z][a-z0-9]*(?:[A-Z][a-z0-9]*)*(?:Token|Key|Secret|Password|Credential|Auth))\b`)

	// Common non-sensitive environment variables to exclude from
	// redaction (§7's SYSTEM_ENV_KEYS allow-list plus shell basics).
	commonEnvKeywords = map[string]bool{
		"GITHUB":       true,
		"ACTIONS":      true,
		"RUNNER":       true,
		"PATH":         true,
		"HOME":         true,
		"SHELL":        true,
		"LANG":         true,
		"TMPDIR":       true,
		"TEMP":         true,
		"TMP":          true,
		"USER":         true,
		"PWD":          true,
		"SYSTEMROOT":   true,
		"SYSTEMDRIVE":  true,
		"WINDIR":       true,
		"USERPROFILE":  true,
		"LOCALAPPDATA": true,
		"APPDATA":      true,
		"HOMEDRIVE":    true,
		"HOMEPATH":     true,
		"COMSPEC":      true,
		"PROGRAMDATA":  true,
	}
)

// SanitizeErrorMessage redacts apparent secret-key names from an
// install log or driver error message before it is surfaced to the
// user, so tool output never leaks a credential that happened to be
// set in the invocation environment.
func SanitizeErrorMessage(message string) string {
	if message == "" {
		return message
	}

	sanitized := secretNamePattern.ReplaceAllStringFunc(message, func(match string) string {
		if commonEnvKeywords[match] {
			return match
		}
		sanitizeLog.Printf("redacted snake_case secret pattern: %s", match)
		return "[REDACTED]"
	})

	sanitized = pascalCaseSecretPattern.ReplaceAllString(sanitized, "[REDACTED]")

	if sanitized != message {
		sanitizeLog.Print("error message sanitization applied redactions")
	}

	return sanitized
}
