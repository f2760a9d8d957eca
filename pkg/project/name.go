package project

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldRepl maps letters that NFD decomposition leaves alone.
var foldRepl = strings.NewReplacer(
	"æ", "ae", "Æ", "AE",
	"ø", "o", "Ø", "O",
	"ß", "ss",
	"đ", "d", "Đ", "D",
	"ł", "l", "Ł", "L",
	"þ", "th", "Þ", "TH",
)

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

var nameCharset = regexp.MustCompile(`[^A-Za-z0-9_./-]+`)

// NormalizeName turns an arbitrary directory basename into a package-safe
// project name: diacritics folded to ASCII, camel-case boundaries
// hyphenated, charset restricted, lower-cased. Idempotent.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	folded, _, err := transform.String(t, name)
	if err == nil {
		name = folded
	}

	name = foldRepl.Replace(name)
	name = camelBoundary.ReplaceAllString(name, "$1-$2")
	name = nameCharset.ReplaceAllString(name, "")

	return strings.ToLower(name)
}

// Identifier builds the <owner>/<project> package name. A missing owner
// falls back to the project name itself.
func Identifier(owner, project string) string {
	project = NormalizeName(project)

	owner = NormalizeName(owner)
	if owner == "" {
		owner = project
	}

	return owner + "/" + project
}
