package chatsync

import (
	"fmt"
	"sort"
	"strings"
)

const (
	keyPlaceholder = "_"
	keySeparator   = "_"
)

var keySanitizer = strings.NewReplacer(
	".", keyPlaceholder,
	"#", keyPlaceholder,
	"$", keyPlaceholder,
	"[", keyPlaceholder,
	"]", keyPlaceholder,
	"/", keyPlaceholder,
)

// DeriveConversationKey maps an unordered pair of participant identifiers to
// one storage-safe key. Identifiers are sanitized, sorted and joined with "_",
// so ("a.b@x.com", "c@y.com") becomes "a_b@x_com_c@y_com".
func DeriveConversationKey(idA, idB string) (string, error) {
	a := strings.TrimSpace(idA)
	b := strings.TrimSpace(idB)
	if a == "" || b == "" {
		return "", fmt.Errorf("%w: both participant identifiers are required", ErrInvalidArgument)
	}

	ids := []string{SanitizeKeySegment(a), SanitizeKeySegment(b)}
	sort.Strings(ids)
	return strings.Join(ids, keySeparator), nil
}

// SanitizeKeySegment replaces characters that are unsafe in a hierarchical
// storage path.
func SanitizeKeySegment(value string) string {
	return keySanitizer.Replace(value)
}
