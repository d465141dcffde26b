package dashboard

import (
	"fmt"

	"github.com/teemow/mailbuddy/internal/api"
)

// Tab is a named view over the message list.
type Tab string

const (
	TabInbox      Tab = "inbox"
	TabSpam       Tab = "spam"
	TabVerified   Tab = "verified"
	TabJobUpdate  Tab = "job_update"
	TabJobAds     Tab = "job_ads"
	TabWork       Tab = "work"
	TabPromotions Tab = "promotions"
	TabSocial     Tab = "social"
	TabUpdates    Tab = "updates"
)

// Tabs lists every tab in display order.
var Tabs = []Tab{
	TabInbox,
	TabSpam,
	TabVerified,
	TabJobUpdate,
	TabJobAds,
	TabWork,
	TabPromotions,
	TabSocial,
	TabUpdates,
}

var tabLabels = map[Tab]string{
	TabInbox:      "Inbox",
	TabSpam:       "Spam",
	TabVerified:   "Verified",
	TabJobUpdate:  "Job Updates",
	TabJobAds:     "Job Ads",
	TabWork:       "Work",
	TabPromotions: "Promotions",
	TabSocial:     "Social",
	TabUpdates:    "Updates",
}

// categoryTabs maps the single-category tabs to their category.
var categoryTabs = map[Tab]string{
	TabJobUpdate:  api.CategoryJobUpdate,
	TabJobAds:     api.CategoryJobAds,
	TabWork:       api.CategoryWork,
	TabPromotions: api.CategoryPromotions,
	TabSocial:     api.CategorySocial,
	TabUpdates:    api.CategoryUpdates,
}

// Label returns the display name of t.
func (t Tab) Label() string {
	if l, ok := tabLabels[t]; ok {
		return l
	}
	return string(t)
}

// ParseTab returns the tab named s.
func ParseTab(s string) (Tab, error) {
	t := Tab(s)
	if _, ok := tabLabels[t]; !ok {
		return "", fmt.Errorf("unknown tab %q", s)
	}
	return t, nil
}

// Suspicious reports whether m belongs in the spam view: marked Spam, flagged
// as fake, or classified as a fake job offer.
func Suspicious(m api.Message) bool {
	return m.Category == api.CategorySpam || m.IsFake || m.Category == api.CategoryFakeJob
}

// Matches reports whether m is shown on tab t. Unknown tabs show everything,
// like the inbox.
func Matches(m api.Message, t Tab) bool {
	switch t {
	case TabSpam:
		return Suspicious(m)
	case TabVerified:
		return !Suspicious(m)
	}
	if category, ok := categoryTabs[t]; ok {
		return m.Category == category
	}
	return true
}

// Filter returns the messages shown on tab t, preserving order.
func Filter(msgs []api.Message, t Tab) []api.Message {
	out := make([]api.Message, 0, len(msgs))
	for _, m := range msgs {
		if Matches(m, t) {
			out = append(out, m)
		}
	}
	return out
}

// Counts returns the number of messages on every tab.
func Counts(msgs []api.Message) map[Tab]int {
	counts := make(map[Tab]int, len(Tabs))
	for _, m := range msgs {
		for _, t := range Tabs {
			if Matches(m, t) {
				counts[t]++
			}
		}
	}
	return counts
}
