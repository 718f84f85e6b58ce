package spamfilter

import (
	"regexp"
	"strings"
)

type weighted struct {
	phrase string
	points int
}

var highRiskTerms = []weighted{
	{"viagra", 30},
	{"cialis", 30},
	{"casino", 25},
	{"lottery", 25},
	{"winner", 20},
	{"congratulations", 15},
	{"free money", 25},
	{"earn money", 20},
	{"work from home", 15},
	{"weight loss", 20},
	{"diet pills", 25},
	{"bitcoin", 15},
	{"cryptocurrency", 15},
	{"investment opportunity", 20},
	{"click here now", 20},
	{"limited time offer", 15},
}

var phishingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)verify.*account`),
	regexp.MustCompile(`(?i)update.*payment`),
	regexp.MustCompile(`(?i)suspended.*account`),
	regexp.MustCompile(`(?i)unusual.*activity`),
	regexp.MustCompile(`(?i)confirm.*identity`),
	regexp.MustCompile(`(?i)urgent.*action.*required`),
	regexp.MustCompile(`(?i)click.*immediately`),
}

var (
	urlRe = regexp.MustCompile(`https?://\S+`)
	tagRe = regexp.MustCompile(`<[^>]*>`)
)

const (
	urlDensityLimit = 0.3
	urlDensityPts   = 20
	phishingPts     = 50
	htmlRatioLimit  = 0.7
	htmlRatioPts    = 15
)

// ContentScore is the content sub-score and the reasons behind it.
type ContentScore struct {
	Score   int
	Reasons []string
}

// AnalyzeContent scores subject and body for high-risk terms, link density,
// phishing phrasing and markup-heavy bodies.
func AnalyzeContent(subject, body string) ContentScore {
	var cs ContentScore

	if pts := triggerScore(subject + " " + body); pts > 0 {
		cs.Score += pts
		cs.Reasons = append(cs.Reasons, "Contains spam trigger words")
	}
	if URLDensity(body) > urlDensityLimit {
		cs.Score += urlDensityPts
		cs.Reasons = append(cs.Reasons, "High URL density")
	}
	if hasPhishingPattern(body) {
		cs.Score += phishingPts
		cs.Reasons = append(cs.Reasons, "Contains phishing patterns")
	}
	if HTMLRatio(body) > htmlRatioLimit {
		cs.Score += htmlRatioPts
		cs.Reasons = append(cs.Reasons, "Excessive HTML markup")
	}
	return cs
}

func triggerScore(text string) int {
	text = strings.ToLower(text)
	score := 0
	for _, t := range highRiskTerms {
		if strings.Contains(text, t.phrase) {
			score += t.points
		}
	}
	return score
}

func hasPhishingPattern(text string) bool {
	for _, re := range phishingPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// URLDensity is the number of URLs per word of tag-stripped text.
func URLDensity(body string) float64 {
	if body == "" {
		return 0
	}
	urls := len(urlRe.FindAllString(body, -1))
	words := len(strings.Fields(tagRe.ReplaceAllString(body, " ")))
	if words == 0 {
		return 0
	}
	return float64(urls) / float64(words)
}

// HTMLRatio is the share of body bytes taken up by markup.
func HTMLRatio(body string) float64 {
	if body == "" {
		return 0
	}
	text := tagRe.ReplaceAllString(body, "")
	return float64(len(body)-len(text)) / float64(len(body))
}
