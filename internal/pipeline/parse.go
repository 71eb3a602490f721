package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

type critique struct {
	confidence Confidence
	issues     string
	rating     string
}

// parseCritique reads the CONFIDENCE/ISSUES/VERDICT block. ok is false when no
// verdict line is present.
func parseCritique(text string) (critique, bool) {
	c := critique{confidence: ConfidenceMedium, issues: "None"}
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			value := strings.ToUpper(afterColon(line))
			for _, level := range []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow} {
				if strings.Contains(value, string(level)) {
					c.confidence = level
					break
				}
			}
		case strings.HasPrefix(upper, "ISSUES:"):
			issues := afterColon(line)
			for i+1 < len(lines) && continuation(lines[i+1], "CONFIDENCE:", "VERDICT:", "ISSUES:") {
				i++
				issues += " " + strings.TrimSpace(lines[i])
			}
			if issues != "" {
				c.issues = issues
			}
		case strings.HasPrefix(upper, "VERDICT:"):
			value := strings.ToUpper(afterColon(line))
			// UNRELIABLE contains RELIABLE, so order matters
			for _, v := range []string{"UNRELIABLE", "QUESTIONABLE", "RELIABLE"} {
				if strings.Contains(value, v) {
					c.rating = v
					break
				}
			}
		}
	}
	return c, c.rating != ""
}

type extractedClaim struct {
	text     string
	disputed bool
	reason   string
}

var claimBlockSplit = regexp.MustCompile(`(?m)^\s*-{3,}\s*$`)

// parseClaims reads CLAIM/STATUS/REASON blocks separated by "---" lines or by
// a new CLAIM line.
func parseClaims(text string) []extractedClaim {
	var out []extractedClaim
	for _, block := range claimBlockSplit.Split(text, -1) {
		var cur *extractedClaim
		lines := strings.Split(block, "\n")
		for i := 0; i < len(lines); i++ {
			line := strings.TrimSpace(lines[i])
			upper := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(upper, "CLAIM:"):
				if cur != nil && cur.text != "" {
					out = append(out, *cur)
				}
				cur = &extractedClaim{text: afterColon(line)}
			case cur == nil:
				continue
			case strings.HasPrefix(upper, "STATUS:"):
				cur.disputed = strings.Contains(strings.ToUpper(afterColon(line)), "DISPUT")
			case strings.HasPrefix(upper, "REASON:"):
				reason := afterColon(line)
				for i+1 < len(lines) && continuation(lines[i+1], "CLAIM:", "STATUS:", "REASON:") {
					i++
					reason += " " + strings.TrimSpace(lines[i])
				}
				cur.reason = reason
			}
		}
		if cur != nil && cur.text != "" {
			out = append(out, *cur)
		}
	}
	return out
}

var citationBracket = regexp.MustCompile(`\[([^\[\]]+)\]`)
var citationLabel = regexp.MustCompile(`(?i)source\s*(\d+)`)

// citedLabels returns the "Source N" labels cited in brackets, in order of first
// appearance. "[Source 1, Source 3]" and "[Source 1][Source 2]" are both understood.
func citedLabels(answer string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range citationBracket.FindAllStringSubmatch(answer, -1) {
		for _, n := range citationLabel.FindAllStringSubmatch(m[1], -1) {
			num, err := strconv.Atoi(n[1])
			if err != nil {
				continue
			}
			label := "Source " + strconv.Itoa(num)
			if !seen[label] {
				seen[label] = true
				out = append(out, label)
			}
		}
	}
	return out
}

func afterColon(line string) string {
	if _, rest, ok := strings.Cut(line, ":"); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

// continuation reports whether line continues the previous field.
func continuation(line string, keys ...string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	upper := strings.ToUpper(trimmed)
	for _, k := range keys {
		if strings.HasPrefix(upper, k) {
			return false
		}
	}
	return true
}
