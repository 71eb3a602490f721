package security

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
)

const (
	MinQueryLength = 3
	MaxQueryLength = 500
	MaxFilename    = 255
)

var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(how to make|how to create|how to build|how to synthesize)\b.{0,30}\b(bomb|weapon|explosive|poison|drug|malware|virus)\b`),
	regexp.MustCompile(`(?i)\b(child|minor|underage).{0,20}\b(nude|naked|sexual|porn)\b`),
	regexp.MustCompile(`(?i)\b(kill|murder|assassinate)\b.{0,20}\b(person|people|someone|president|minister)\b`),
	regexp.MustCompile(`(?i)\b(hack|exploit|crack)\b.{0,20}\b(bank|account|password|system)\b`),
	// prompt injection
	regexp.MustCompile(`(?i)\b(ignore|disregard|forget)\b.{0,20}\b(previous|prior|above|all)\b.{0,20}\b(instructions|prompts?|rules)\b`),
}

var explicitKeywords = []string{
	"porn", "pornography", "nude", "naked", "sex tape",
	"child abuse", "cp ", "csam", "gore", "snuff",
	"rape", "molest", "pedophile",
}

// ValidateQuery trims query and rejects empty, too short, too long or harmful
// input with ErrValidation.
func ValidateQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", apperr.Validation("query cannot be empty")
	}
	n := utf8.RuneCountInString(query)
	if n < MinQueryLength {
		return "", apperr.Validation("query is too short")
	}
	if n > MaxQueryLength {
		return "", apperr.Validation("query too long, maximum %d characters allowed", MaxQueryLength)
	}

	lower := strings.ToLower(query)
	for _, kw := range explicitKeywords {
		if strings.Contains(lower, kw) {
			return "", apperr.Validation("this type of content is not allowed")
		}
	}
	for _, p := range blockedPatterns {
		if p.MatchString(lower) {
			return "", apperr.Validation("this query has been flagged as potentially harmful and cannot be processed")
		}
	}
	return query, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s\-.]`)

// SanitizeFilename strips path components and characters outside
// [word, space, dash, dot], and requires a .pdf extension.
func SanitizeFilename(name string) (string, error) {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, ". ")
	if name == "" || name == "/" {
		return "", apperr.Validation("invalid filename")
	}
	if len(name) > MaxFilename {
		return "", apperr.Validation("filename longer than %d bytes", MaxFilename)
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", apperr.Validation("only PDF files are supported")
	}
	return name, nil
}
