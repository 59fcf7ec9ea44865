// Package classifier assigns a category and priority to inbound email by
// keyword matching. Rules are evaluated in declaration order and the first
// match wins.
package classifier

import (
	"strings"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

// CategoryRule maps any of Keywords to Category.
type CategoryRule struct {
	Category models.TicketCategory
	Keywords []string
}

// PriorityRule maps any of Keywords to Priority.
type PriorityRule struct {
	Priority models.TicketPriority
	Keywords []string
}

// Result is the outcome of Classify.
type Result struct {
	Category models.TicketCategory `json:"category"`
	Priority models.TicketPriority `json:"priority"`
}

// Defaults used when no rule matches.
const (
	DefaultCategory = models.CategorySupport
	DefaultPriority = models.PriorityMedium
)

// DefaultCategoryRules is the built-in category table.
var DefaultCategoryRules = []CategoryRule{
	{models.CategoryBug, []string{"bug", "error", "broken", "crash", "not working", "issue", "problem", "fail", "exception"}},
	{models.CategoryFeatureRequest, []string{"feature", "request", "enhancement", "improvement", "suggestion", "add", "new functionality"}},
	{models.CategoryTechnicalIssue, []string{"technical", "server", "database", "network", "connection", "performance", "slow", "timeout"}},
	{models.CategorySupport, []string{"help", "support", "question", "how to", "assistance", "guide", "tutorial"}},
	{models.CategoryGeneral, []string{"general", "information", "inquiry", "feedback"}},
}

// DefaultPriorityRules is the built-in priority table.
var DefaultPriorityRules = []PriorityRule{
	{models.PriorityUrgent, []string{"urgent", "critical", "emergency", "asap", "immediately", "down", "outage"}},
	{models.PriorityHigh, []string{"important", "high priority", "soon", "affecting", "multiple users"}},
	{models.PriorityLow, []string{"low priority", "when possible", "minor", "cosmetic", "nice to have"}},
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	categories []CategoryRule
	priorities []PriorityRule
}

// New builds a classifier from rule tables. Nil tables fall back to the
// built-in ones. Keywords are lowercased.
func New(categories []CategoryRule, priorities []PriorityRule) *Classifier {
	if categories == nil {
		categories = DefaultCategoryRules
	}
	if priorities == nil {
		priorities = DefaultPriorityRules
	}
	c := &Classifier{
		categories: make([]CategoryRule, len(categories)),
		priorities: make([]PriorityRule, len(priorities)),
	}
	for i, r := range categories {
		c.categories[i] = CategoryRule{Category: r.Category, Keywords: lowerAll(r.Keywords)}
	}
	for i, r := range priorities {
		c.priorities[i] = PriorityRule{Priority: r.Priority, Keywords: lowerAll(r.Keywords)}
	}
	return c
}

// Default returns a classifier with the built-in tables.
func Default() *Classifier {
	return New(nil, nil)
}

// Classify scores subject and body. It never fails.
func (c *Classifier) Classify(subject, body string) Result {
	text := strings.ToLower(subject + " " + body)
	res := Result{Category: DefaultCategory, Priority: DefaultPriority}

	for _, r := range c.categories {
		if containsAny(text, r.Keywords) {
			res.Category = r.Category
			break
		}
	}
	for _, r := range c.priorities {
		if containsAny(text, r.Keywords) {
			res.Priority = r.Priority
			break
		}
	}
	return res
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
