// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pdiddy/zotero-md/pkg/types"
)

// maxTitleRunes bounds the title part of a slug so long titles do not
// produce unwieldy filenames.
const maxTitleRunes = 80

// Slug returns a filesystem-safe filename stem for an item. The title is
// lowercased and folded to hyphen-separated ASCII words, then the
// lowercased item key is appended so that identical titles under one
// parent cannot collide. An empty or unrepresentable title falls back to
// the key alone.
func Slug(title, key string) string {
	stem := kebab(title)
	k := strings.ToLower(strings.TrimSpace(key))

	switch {
	case stem == "" && k == "":
		return ""
	case stem == "":
		return k
	case k == "":
		return stem
	default:
		return stem + "-" + k
	}
}

// kebab lowercases s and collapses every run of non-alphanumeric runes
// into a single hyphen. Non-ASCII letters are dropped rather than
// transliterated, so the result never contains path separators or
// reserved characters.
func kebab(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	count := 0
	for _, r := range strings.ToLower(s) {
		if count >= maxTitleRunes {
			break
		}
		if (r >= 'a' && r <= 'z') || unicode.IsDigit(r) && r < 128 {
			b.WriteRune(r)
			lastHyphen = false
			count++
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
			count++
		}
	}
	return strings.Trim(b.String(), "-")
}

// OutputPath computes the deterministic Markdown destination for an
// attachment: outputDir/<slug(parent)>/<slug(attachment)>.md. A
// standalone attachment (no parent item) is grouped under its own key.
func OutputPath(att types.Attachment, outputDir string) string {
	dir := Slug(att.ParentTitle, att.ParentKey)
	if dir == "" {
		dir = strings.ToLower(att.Key)
	}
	return filepath.Join(outputDir, dir, Slug(att.Title, att.Key)+".md")
}
