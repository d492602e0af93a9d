package segment

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Labels that always open a major question.
	strongMajorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^第\s*(\d+)\s*题[\s.:：、]*(.*)$`),
		regexp.MustCompile(`^题\s*(\d+)[\s.:：、]*(.*)$`),
		regexp.MustCompile(`^(?i:question|problem|exercise|q)\s*(\d+)\s*[.:)：]?\s*(.*)$`),
	}
	// "1." "1、" "1)"; the rest must not start with a digit so "1.5 kg" stays text.
	numberedPattern = regexp.MustCompile(`^(\d+)\s*([.、。)．])\s*(\D.*)?$`)

	// "1a." "1(a)" "1.1": subquestion carrying its major prefix.
	compoundSubPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(\d+)\s*\(([a-zA-Z])\)\s*(.*)$`),
		regexp.MustCompile(`^(\d+)([a-zA-Z])\s*[.)、]\s*(.*)$`),
		regexp.MustCompile(`^(\d+)\.(\d+)(?:[.)]\s*|\s+)(.*)$`),
	}
	subPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[(（]\s*([a-zA-Z]|[ivxIVX]+|\d+)\s*[)）]\s*(.*)$`),
		regexp.MustCompile(`^([ivx]+)[.)]\s+(.*)$`),
		regexp.MustCompile(`^([a-zA-Z])[.)]\s+(.*)$`),
		regexp.MustCompile(`^([a-zA-Z])\)(.*)$`),
	}
)

type majorMatch struct {
	label  string
	number int
	rest   string
	strong bool
	delim  string // "." "、" ")" for numbered labels, empty for strong ones
}

func matchMajor(line string) (majorMatch, bool) {
	for _, re := range strongMajorPatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			return majorMatch{label: m[1], number: n, rest: strings.TrimSpace(m[2]), strong: true}, true
		}
	}
	if m := numberedPattern.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return majorMatch{}, false
		}
		return majorMatch{label: m[1], number: n, rest: strings.TrimSpace(m[3]), delim: m[2]}, true
	}
	return majorMatch{}, false
}

type subMatch struct {
	major   string // set for compound labels like "1a."
	label   string
	rest    string
	decimal bool // "1.2" style, easily confused with a number in the text
}

func matchCompoundSub(line string) (subMatch, bool) {
	for i, re := range compoundSubPatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return subMatch{
				major:   m[1],
				label:   normalizeLabel(m[2]),
				rest:    strings.TrimSpace(m[3]),
				decimal: i == len(compoundSubPatterns)-1,
			}, true
		}
	}
	return subMatch{}, false
}

func matchSub(line string) (subMatch, bool) {
	for _, re := range subPatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return subMatch{label: normalizeLabel(m[1]), rest: strings.TrimSpace(m[2])}, true
		}
	}
	return subMatch{}, false
}

// NormalizeLabel canonicalises a question label for comparison:
// lowercase, without brackets, dots or surrounding space.
func NormalizeLabel(s string) string {
	return normalizeLabel(s)
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, "()（）.、)．: ")
}
