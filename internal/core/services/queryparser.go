package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/custodia-labs/finrag/internal/core/domain"
	"github.com/custodia-labs/finrag/internal/core/ports/driving"
)

// Ensure QueryParser implements the interface.
var _ driving.QueryParser = (*QueryParser)(nil)

const isoDate = "2006-01-02"

// Plausible range for a bare four-digit year.
const (
	minYear = 1900
	maxYear = 2100
)

// dateExpr matches every supported date form. Longer forms come first.
const dateExpr = `(\d{4}-\d{2}-\d{2}|\d{4}/\d{2}/\d{2}|\d{4}-\d{2}|` +
	`(?:january|february|march|april|may|june|july|august|september|october|november|december|` +
	`jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\s+\d{4}|\d{4})`

var (
	tickerPattern = regexp.MustCompile(`(?i)\bticker:\s*([a-z][a-z0-9.\-]*)`)
	formPattern   = regexp.MustCompile(`(?i)\bform:\s*([a-z0-9][a-z0-9\-/]*)`)
	typePattern   = regexp.MustCompile(`(?i)\btype:\s*([a-z_]+)`)

	rangePattern = regexp.MustCompile(`(?i)\b(?:from|between)\s+` + dateExpr + `\s+(?:to|and|through)\s+` + dateExpr + `\b`)
	lowerPattern = regexp.MustCompile(`(?i)\b(from|since|after)\s+` + dateExpr + `\b`)
	upperPattern = regexp.MustCompile(`(?i)\b(before|until)\s+` + dateExpr + `\b`)
	inPattern    = regexp.MustCompile(`(?i)\bin\s+` + dateExpr + `\b`)

	booleanPattern = regexp.MustCompile(`\b(AND|OR|NOT)\b`)
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var defaultStopWords = []string{
	"a", "about", "an", "and", "are", "as", "at", "be", "been", "by", "did", "do", "does",
	"for", "from", "had", "has", "have", "how", "i", "in", "is", "it", "its", "me", "my",
	"not", "of", "on", "or", "our", "show", "tell", "that", "the", "their", "them", "there",
	"these", "they", "this", "to", "was", "we", "were", "what", "when", "where", "which",
	"who", "why", "will", "with", "you", "your",
}

// QueryParser extracts inline filters, Boolean keywords and search terms
// from free-text questions.
type QueryParser struct {
	stopWords map[string]struct{}
}

// NewQueryParser creates a query parser with the default English stop words.
func NewQueryParser() *QueryParser {
	stop := make(map[string]struct{}, len(defaultStopWords))
	for _, w := range defaultStopWords {
		stop[w] = struct{}{}
	}
	return &QueryParser{stopWords: stop}
}

// Parse splits text into residual query text and filters. Empty input is
// an ErrParse.
func (p *QueryParser) Parse(text string, extractFilters bool) (*domain.ParsedQuery, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrParse)
	}

	parsed := &domain.ParsedQuery{
		QueryText:        strings.TrimSpace(text),
		BooleanOperators: booleanPattern.FindAllString(text, -1),
	}
	if parsed.BooleanOperators == nil {
		parsed.BooleanOperators = []string{}
	}

	if extractFilters {
		parsed.QueryText = collapseSpace(p.extract(text, &parsed.Filters))
	}
	parsed.QueryTerms = p.terms(parsed.QueryText)

	return parsed, nil
}

// extract removes recognised filter tokens from text, recording them in f.
// The first occurrence of each filter wins.
func (p *QueryParser) extract(text string, f *domain.Filters) string {
	text = strip(tickerPattern, text, func(m []string) bool {
		setOnce(&f.Ticker, strings.ToUpper(m[1]))
		return true
	})
	text = strip(formPattern, text, func(m []string) bool {
		setOnce(&f.FormType, strings.ToUpper(m[1]))
		return true
	})
	text = strip(typePattern, text, func(m []string) bool {
		setOnce(&f.DocumentType, strings.ToLower(m[1]))
		return true
	})

	text = strip(rangePattern, text, func(m []string) bool {
		from, _, ok1 := parsePeriod(m[1])
		_, to, ok2 := parsePeriod(m[2])
		if !ok1 || !ok2 {
			return false
		}
		setOnce(&f.DateFrom, from.Format(isoDate))
		setOnce(&f.DateTo, to.Format(isoDate))
		return true
	})
	text = strip(lowerPattern, text, func(m []string) bool {
		start, end, ok := parsePeriod(m[2])
		if !ok {
			return false
		}
		if strings.EqualFold(m[1], "after") {
			start = end.AddDate(0, 0, 1)
		}
		setOnce(&f.DateFrom, start.Format(isoDate))
		return true
	})
	text = strip(upperPattern, text, func(m []string) bool {
		start, end, ok := parsePeriod(m[2])
		if !ok {
			return false
		}
		if strings.EqualFold(m[1], "before") {
			end = start.AddDate(0, 0, -1)
		}
		setOnce(&f.DateTo, end.Format(isoDate))
		return true
	})
	text = strip(inPattern, text, func(m []string) bool {
		start, end, ok := parsePeriod(m[1])
		if !ok {
			return false
		}
		setOnce(&f.DateFrom, start.Format(isoDate))
		setOnce(&f.DateTo, end.Format(isoDate))
		return true
	})

	return text
}

// terms returns the lower-cased, de-duplicated content words of text.
func (p *QueryParser) terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '.' && r != '$'
	})

	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".-")
		if f == "" {
			continue
		}
		if _, stop := p.stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// strip removes every match of re for which keep returns true.
func strip(re *regexp.Regexp, text string, keep func(m []string) bool) string {
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		if !keep(groups) {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteByte(' ')
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// parsePeriod returns the first and last day covered by a date expression.
func parsePeriod(s string) (start, end time.Time, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))

	for _, layout := range []string{isoDate, "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, t, true
		}
	}

	if t, err := time.Parse("2006-01", s); err == nil {
		return t, t.AddDate(0, 1, -1), true
	}

	if fields := strings.Fields(s); len(fields) == 2 {
		month, known := monthNames[fields[0]]
		year, err := strconv.Atoi(fields[1])
		if !known || err != nil || year < minYear || year > maxYear {
			return start, end, false
		}
		t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		return t, t.AddDate(0, 1, -1), true
	}

	if year, err := strconv.Atoi(s); err == nil && len(s) == 4 && year >= minYear && year <= maxYear {
		t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return t, time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC), true
	}

	return start, end, false
}

func setOnce(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
