package objects

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// DocumentKey returns a fresh object key for a file attached to a policy:
// policies/<policyID>/<uuid>-<name>
func DocumentKey(policyID, fileName string) string {
	return fmt.Sprintf("policies/%s/%s-%s", policyID, uuid.NewString(), SanitizeFileName(fileName))
}

// SanitizeFileName strips directories and characters that are awkward in object keys
func SanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "document"
	}
	return name
}
