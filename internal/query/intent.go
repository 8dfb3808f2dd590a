package query

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent is the classified shape of a free-text question.
type Intent struct {
	Kind      string // one of the Kind constants
	Dimension string // ranking dimension, when Kind == KindRanking
	Term      string // search term, when Kind == KindSearch
	FromMonth int
	ToMonth   int
}

const (
	KindOverview = "overview"
	KindTrend    = "trend"
	KindRanking  = "ranking"
	KindSearch   = "search"
)

var (
	yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	uenPattern  = regexp.MustCompile(`\b\d{8,9}[A-Z]\b|\b[TSR]\d{2}[A-Z]{2}\d{4}[A-Z]\b`)

	trendWords   = []string{"trend", "over time", "per month", "monthly", "growth", "timeline"}
	rankingWords = []string{"top", "most", "rank", "highest", "busiest", "where are"}
	countWords   = []string{"how many", "count", "total", "overview", "summary"}
)

// Classify maps a question to a query intent by keyword and pattern dispatch.
// Unrecognized questions fall through to a name search over the whole text.
func Classify(question string) Intent {
	q := strings.ToLower(strings.TrimSpace(question))

	intent := Intent{Kind: KindSearch, Term: strings.TrimSpace(question)}

	switch {
	case containsAny(q, trendWords):
		intent.Kind = KindTrend
	case containsAny(q, rankingWords):
		intent.Kind = KindRanking
		intent.Dimension = rankingDimension(q)
	case containsAny(q, countWords):
		intent.Kind = KindOverview
	case uenPattern.MatchString(strings.ToUpper(question)):
		intent.Term = uenPattern.FindString(strings.ToUpper(question))
	}

	// A year mention bounds trend queries to that calendar year.
	if intent.Kind == KindTrend {
		if year := yearPattern.FindString(q); year != "" {
			y, _ := strconv.Atoi(year)
			intent.FromMonth = y*100 + 1
			intent.ToMonth = y*100 + 12
		}
	}
	return intent
}

func rankingDimension(q string) string {
	switch {
	case strings.Contains(q, "subzone"):
		return RankBySubzone
	case strings.Contains(q, "industr") || strings.Contains(q, "ssic") || strings.Contains(q, "sector"):
		return RankBySSIC
	default:
		return RankByPlanningArea
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
