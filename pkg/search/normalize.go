package search

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	weirdCharsRe = regexp.MustCompile("[#!~]")
)

// normalizeName puts a claim name into the canonical form stored in the
// `normalized` field: NFD decomposition followed by unicode case folding.
func normalizeName(name string) string {
	return cases.Fold().String(norm.NFD.String(name))
}

// normalizeTag lowercases a tag, strips apostrophes and collapses unwanted
// characters and runs of whitespace into single spaces.
func normalizeTag(tag string) string {
	lower := strings.ReplaceAll(cases.Lower(language.English).String(tag), "'", "")
	cleaned := weirdCharsRe.ReplaceAllString(lower, " ")
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(cleaned, " "))
}

// cleanTags normalizes each tag and drops the ones that end up empty.
func cleanTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := normalizeTag(tag); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return cleaned
}
