package rename

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxStemLength caps the part of a filename before its extension, in runes.
const MaxStemLength = 100

var (
	illegalChars = strings.NewReplacer(
		"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_",
		`\`, "_", "|", "_", "?", "_", "*", "_",
	)
	whitespaceRun = regexp.MustCompile(`\s+`)
	tokenPattern  = regexp.MustCompile(`\{(\w+)\}`)
)

// SplitName splits at the last dot. The dot belongs to the extension; a name
// without a dot has an empty extension.
func SplitName(name string) (stem, ext string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

// Sanitize makes name safe as a filename: reserved characters become "_",
// whitespace runs collapse to one space and the stem is cut to MaxStemLength
// runes. The extension is never shortened.
func Sanitize(name string) string {
	stem, ext := SplitName(name)
	return sanitizeParts(stem, ext)
}

func sanitizeParts(stem, ext string) string {
	return sanitizeStem(stem) + clean(ext)
}

func sanitizeStem(stem string) string {
	stem = strings.TrimSpace(clean(stem))
	if utf8.RuneCountInString(stem) > MaxStemLength {
		stem = strings.TrimRight(string([]rune(stem)[:MaxStemLength]), " ")
	}
	return stem
}

func clean(s string) string {
	return whitespaceRun.ReplaceAllString(illegalChars.Replace(s), " ")
}

// Expand substitutes {name} tokens found in values. Unknown tokens stay as
// written.
func Expand(template string, values map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(tok string) string {
		if v, ok := values[tok[1:len(tok)-1]]; ok {
			return v
		}
		return tok
	})
}
