package assistant

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/teemow/mailbuddy/internal/api"
	"github.com/teemow/mailbuddy/internal/logging"
)

const (
	// MaxInputLength is the number of body characters looked at.
	MaxInputLength = 1000

	// MaxSummaryLength bounds the generated summary.
	MaxSummaryLength = 200

	summarySentences = 2

	// fraudThreshold is the number of fraud signals that flag a message.
	fraudThreshold = 2
)

// Classifier analyzes a single message.
type Classifier interface {
	Classify(ctx context.Context, req api.ClassifyRequest) (api.Classification, error)
}

type rule struct {
	category string
	keywords []string
}

// rules are checked in order; the first category with a matching keyword wins.
var rules = []rule{
	{api.CategoryJobUpdate, []string{
		"your application", "application status", "interview", "thank you for applying",
		"thanks for applying", "offer letter", "next steps", "recruiter", "hiring manager",
		"we have reviewed your", "moving forward with",
	}},
	{api.CategoryJobAds, []string{
		"jobs you might like", "job alert", "new jobs", "apply now", "is hiring",
		"job recommendations", "jobs for you", "open positions", "career opportunities",
	}},
	{api.CategorySpam, []string{
		"you have won", "lottery", "claim your prize", "winner", "viagra", "casino",
		"100% free", "act now", "risk-free", "double your",
	}},
	{api.CategoryWork, []string{
		"meeting", "agenda", "project", "deadline", "standup", "sprint", "pull request",
		"code review", "quarterly", "invoice", "contract", "minutes",
	}},
	{api.CategorySocial, []string{
		"friend request", "mentioned you", "commented on", "tagged you", "followed you",
		"new follower", "invitation to connect", "birthday", "liked your",
	}},
	{api.CategoryPromotions, []string{
		"% off", "sale", "discount", "coupon", "promo code", "free shipping", "deal",
		"limited time", "newsletter", "unsubscribe",
	}},
	{api.CategoryUpdates, []string{
		"security alert", "password", "sign-in", "verify", "terms of service", "privacy policy",
		"account", "receipt", "order", "shipped", "notification", "update",
	}},
}

var jobKeywords = []string{
	"job", "position", "role", "hiring", "salary", "recruiter", "recruiting", "recruitment",
	"work from home", "career", "vacancy",
}

var fraudSignals = []string{
	"wire transfer", "western union", "gift card", "processing fee", "registration fee",
	"training fee", "pay a fee", "upfront payment", "bank details", "bank account number",
	"social security", "ssn", "confirm your password", "verify your password", "login immediately",
	"account will be suspended", "urgent response", "bitcoin", "crypto", "whatsapp", "telegram",
	"no experience needed", "no experience required", "earn $", "per week from home", "guaranteed income",
}

// TrustedDomains are sender domains whose messages are never flagged as fake.
var TrustedDomains = []string{"google.com", "microsoft.com"}

// KeywordClassifier classifies messages with keyword rules over the lower-cased
// subject and the first MaxInputLength characters of the body.
type KeywordClassifier struct {
	trusted []string
}

// NewKeywordClassifier returns a classifier that trusts TrustedDomains and
// their subdomains.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{trusted: TrustedDomains}
}

// Classify implements Classifier.
func (k *KeywordClassifier) Classify(ctx context.Context, req api.ClassifyRequest) (api.Classification, error) {
	if err := ctx.Err(); err != nil {
		return api.Classification{}, err
	}

	body := truncate(req.Body, MaxInputLength)
	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(body) == "" {
		return api.Classification{Category: api.CategoryUncategorized}, nil
	}

	text := strings.ToLower(req.Subject + "\n" + body)
	fake := k.isFake(text, req.Sender)

	category := api.CategoryUpdates
	if fake && containsAny(text, jobKeywords) {
		category = api.CategoryFakeJob
	} else if c, ok := match(text); ok {
		category = c
	}

	summary := Summarize(body)
	if summary == "" {
		summary = truncate(strings.TrimSpace(req.Subject), MaxSummaryLength)
	}

	return api.Classification{Category: category, Summary: summary, IsFake: fake}, nil
}

func (k *KeywordClassifier) isFake(text, sender string) bool {
	if k.trustedSender(sender) {
		return false
	}
	hits := 0
	for _, s := range fraudSignals {
		if containsWord(text, s) {
			hits++
		}
	}
	return hits >= fraudThreshold
}

func (k *KeywordClassifier) trustedSender(sender string) bool {
	domain := logging.ExtractDomain(sender)
	if domain == "" {
		return false
	}
	for _, d := range k.trusted {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// Summarize returns the first two sentences of text, whitespace-collapsed and
// cut to MaxSummaryLength characters.
func Summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}

	end, found := 0, 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next < len(text) && !unicode.IsSpace(rune(text[next])) {
			continue
		}
		end = next
		found++
		if found == summarySentences {
			break
		}
	}
	if found == 0 {
		end = len(text)
	}
	return truncate(text[:end], MaxSummaryLength)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func match(text string) (string, bool) {
	for _, r := range rules {
		if containsAny(text, r.keywords) {
			return r.category, true
		}
	}
	return "", false
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if containsWord(text, k) {
			return true
		}
	}
	return false
}

// containsWord reports whether keyword occurs in text as a whole word, so
// "sale" does not match "wholesale". A trailing "s" is allowed for plurals.
// Edges of keyword that are not letters or digits ("% off", "earn $") match
// anything.
func containsWord(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(keyword)
	last, _ := utf8.DecodeLastRuneInString(keyword)

	for i := 0; i < len(text); {
		j := strings.Index(text[i:], keyword)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(keyword)

		before := !isWordRune(first) || start == 0
		if !before {
			prev, _ := utf8.DecodeLastRuneInString(text[:start])
			before = !isWordRune(prev)
		}
		after := !isWordRune(last) || end == len(text)
		if !after {
			if strings.HasPrefix(text[end:], "s") {
				end++
			}
			next, _ := utf8.DecodeRuneInString(text[end:])
			after = end == len(text) || !isWordRune(next)
		}
		if before && after {
			return true
		}

		_, size := utf8.DecodeRuneInString(text[start:])
		i = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
