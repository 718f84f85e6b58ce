// Package content scores message content for spam risk and checks the
// structural requirements for commercial mail.
//
// Scoring is stateless. HTML bodies are flattened to text before any
// heuristic runs, and text is NFKC-normalized and case-folded so that
// full-width or mixed-case spellings match the trigger table.
package content

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/jaytaylor/html2text"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ignite/mailcore/internal/domain"
)

// MaxScore caps the spam score.
const MaxScore = 10

// HighScoreThreshold is the score above which an advisory issue is raised.
const HighScoreThreshold = 8

const (
	capsRatioLimit   = 0.3
	capsPoints       = 2
	exclamationLimit = 3
	exclamationPts   = 1
)

type trigger struct {
	phrase string
	points int
}

// triggers is matched against the folded content. Pharma and gambling
// terms weigh the most.
var triggers = []trigger{
	{"free", 1},
	{"win", 1},
	{"winner", 1},
	{"cash", 1},
	{"prize", 1},
	{"click here", 2},
	{"buy now", 2},
	{"order now", 2},
	{"limited time", 1},
	{"act now", 2},
	{"urgent", 1},
	{"congratulations", 1},
	{"100%", 1},
	{"guarantee", 1},
	{"risk-free", 1},
	{"no obligation", 1},
	{"viagra", 3},
	{"cialis", 3},
	{"casino", 3},
	{"online betting", 3},
	{"weight loss", 2},
	{"make money", 2},
	{"$$$", 2},
}

var (
	unsubscribeRe = regexp.MustCompile(`(?i)unsubscribe|opt-out|remove me`)
	addressRe     = regexp.MustCompile(`(?i)\d+.*\b(street|st|avenue|ave|road|rd|boulevard|blvd)\b`)
)

var deceptivePrefixes = []string{"RE:", "Re:", "FW:", "Fwd:"}

var folder = cases.Fold()

// Result is the spam score of a message.
type Result struct {
	SpamScore int      `json:"spam_score"`
	Issues    []string `json:"issues"`
}

// Validation is the outcome of Validate. Blocking issues stop a send;
// advisory issues are only logged.
type Validation struct {
	SpamScore int      `json:"spam_score"`
	Blocking  []string `json:"blocking"`
	Advisory  []string `json:"advisory"`
}

// Compliant reports whether no blocking issue was found.
func (v Validation) Compliant() bool { return len(v.Blocking) == 0 }

// Issues returns blocking followed by advisory issues.
func (v Validation) Issues() []string {
	out := make([]string, 0, len(v.Blocking)+len(v.Advisory))
	out = append(out, v.Blocking...)
	return append(out, v.Advisory...)
}

// PlainText flattens an HTML body. Bodies without markup are returned as is.
func PlainText(body string) string {
	if !looksLikeHTML(body) {
		return body
	}
	text, err := html2text.FromString(body, html2text.Options{OmitLinks: true})
	if err != nil {
		return body
	}
	return text
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

// Score computes the 0..10 spam score for subject and body.
func Score(subject, body string) Result {
	raw := norm.NFKC.String(subject + " " + PlainText(body))
	folded := folder.String(raw)

	var res Result
	for _, t := range triggers {
		if strings.Contains(folded, t.phrase) {
			res.SpamScore += t.points
		}
	}
	if CapsRatio(raw) > capsRatioLimit {
		res.SpamScore += capsPoints
	}
	if strings.Count(raw, "!") > exclamationLimit {
		res.SpamScore += exclamationPts
	}
	if res.SpamScore > MaxScore {
		res.SpamScore = MaxScore
	}
	if res.SpamScore > HighScoreThreshold {
		res.Issues = append(res.Issues, fmt.Sprintf("High spam score: %d/%d (contains spam trigger words)", res.SpamScore, MaxScore))
	}
	return res
}

// CapsRatio is the share of upper-case letters among all letters.
func CapsRatio(text string) float64 {
	var letters, upper int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

// HasUnsubscribeMention reports whether body mentions a way to opt out.
func HasUnsubscribeMention(body string) bool {
	return unsubscribeRe.MatchString(PlainText(body))
}

// HasPhysicalAddress reports whether body contains a street-address pattern.
func HasPhysicalAddress(body string) bool {
	return addressRe.MatchString(PlainText(body))
}

// HasDeceptiveSubject flags reply or forward prefixes on mail that does not
// reference a previous message.
func HasDeceptiveSubject(subject, body string) bool {
	for _, p := range deceptivePrefixes {
		if strings.HasPrefix(subject, p) && !strings.Contains(body, "previous message") {
			return true
		}
	}
	return false
}

// Validate runs the structural checks and the spam score. Only marketing
// mail can produce blocking issues.
func Validate(subject, body string, emailType domain.EmailType) Validation {
	var v Validation
	if emailType == domain.EmailMarketing {
		if !HasUnsubscribeMention(body) {
			v.Blocking = append(v.Blocking, "Missing unsubscribe link (CAN-SPAM Act)")
		}
		if !HasPhysicalAddress(body) {
			v.Blocking = append(v.Blocking, "Missing physical address (CAN-SPAM Act)")
		}
	}
	if HasDeceptiveSubject(subject, body) {
		v.Advisory = append(v.Advisory, "Subject line may be deceptive (CAN-SPAM Act)")
	}
	score := Score(subject, body)
	v.SpamScore = score.SpamScore
	v.Advisory = append(v.Advisory, score.Issues...)
	return v
}
