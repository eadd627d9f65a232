package matching

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/david/grant-matcher/internal/models"
)

var amountPrinter = message.NewPrinter(language.English)

// htmlToText strips markup from grant descriptions scraped as HTML.
func htmlToText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return normalizeSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return normalizeSpace(s)
	}
	doc.Find("script, style").Remove()
	return normalizeSpace(doc.Text())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateText cuts on a rune boundary and marks the cut with "...".
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}

// FormatAmount renders a dollar amount with thousands separators.
func FormatAmount(v float64) string {
	return amountPrinter.Sprintf("$%.0f", v)
}

// FormatFundingRange renders a grant's funding bounds for prompts and
// tables.
func FormatFundingRange(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return FormatAmount(*lo) + " - " + FormatAmount(*hi)
	case lo != nil:
		return "from " + FormatAmount(*lo)
	case hi != nil:
		return "up to " + FormatAmount(*hi)
	default:
		return "not specified"
	}
}

// FormatDeadline renders a deadline date, or "rolling" when absent.
func FormatDeadline(d *time.Time) string {
	if d == nil {
		return "rolling"
	}
	return models.DeadlineDate(*d).Format("2006-01-02")
}
