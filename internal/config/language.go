package config

import (
	"fmt"

	"golang.org/x/text/language"
)

// NormalizeLanguage parses a BCP 47 tag and returns its canonical form,
// e.g. "en-us" becomes "en-US".
func NormalizeLanguage(tag string) (string, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid recognition language %q: %w", tag, err)
	}
	return parsed.String(), nil
}

// BaseLanguage returns the ISO 639 base of a tag ("en" for "en-US"), which is
// what the multipart upload backends expect. Unknown tags yield "".
func BaseLanguage(tag string) string {
	parsed, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	base, conf := parsed.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}
