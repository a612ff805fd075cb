package source

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	versionToken   = regexp.MustCompile(`(?i)\bv?\d+(\.\d+)+\b`)
	archToken      = regexp.MustCompile(`(?i)\b(x64|x86|x86_64|amd64|arm64|64-bit|32-bit)\b`)
	bracketedToken = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
)

var legalSuffixes = []string{
	"incorporated", "inc", "corporation", "corp", "llc", "ltd", "limited",
	"gmbh", "co", "company", "sa", "ag", "bv",
}

// NormalizeName strips versions, architectures and bracketed qualifiers from a
// display name, then lowercases it and removes everything but letters and digits.
func NormalizeName(name string) string {
	name = bracketedToken.ReplaceAllString(name, " ")
	name = versionToken.ReplaceAllString(name, " ")
	name = archToken.ReplaceAllString(name, " ")
	return alnum(name)
}

// NormalizePublisher drops trailing legal-entity suffixes before normalizing.
func NormalizePublisher(publisher string) string {
	words := strings.FieldsFunc(strings.ToLower(publisher), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for len(words) > 1 && isLegalSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, "")
}

// NormalizeNameAndPublisher is the value indexed for FieldNormalizedNameAndPublisher.
func NormalizeNameAndPublisher(name, publisher string) string {
	return NormalizeName(name) + "|" + NormalizePublisher(publisher)
}

func isLegalSuffix(w string) bool {
	for _, s := range legalSuffixes {
		if w == s {
			return true
		}
	}
	return false
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
