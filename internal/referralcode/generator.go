package referralcode

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// CodeLength is the length of generated referral codes.
const CodeLength = 8

// codePattern accepts uppercase alphanumeric codes between 4 and 16 chars.
// Generated codes always match; the wider range tolerates externally issued
// codes (e.g. vanity codes loaded by operations).
var codePattern = regexp.MustCompile(`^[A-Z0-9]{4,16}$`)

// Generate returns a short referral code derived from a random UUID.
// Collisions are unlikely but possible; the unique index on the links table
// is the actual correctness guarantee, callers must retry on duplicates.
func Generate() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:CodeLength])
}

// ValidFormat reports whether code structurally looks like a referral code.
// Used to fast-reject malformed input before any store lookup.
func ValidFormat(code string) bool {
	return codePattern.MatchString(code)
}

// Link formats the public redemption URL for a code.
func Link(baseURL, code string) string {
	base := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	return base + "/register?ref=" + code
}
