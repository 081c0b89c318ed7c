package command

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Shaxina0930/vocalis-app/pkg/types"
)

// Trigger phrases per intent family. Order inside a family is irrelevant;
// order between families is fixed by [Parse].
var (
	addTriggers    = []string{"add task", "create task", "new task", "add a task"}
	deleteTriggers = []string{"delete task", "remove task", "delete the task", "remove the task"}
	listTriggers   = []string{"list task", "show task", "what are my task", "read my task"}
	clearTriggers  = []string{"clear all task", "delete all task"}
	countTriggers  = []string{"how many task"}
	helpTriggers   = []string{"help", "what can you do"}
)

var (
	addTriggerRe    = triggerPattern(addTriggers)
	deleteTriggerRe = triggerPattern(deleteTriggers)

	// fillerRe matches the date and time words removed from a task title.
	// The "at" form also swallows a trailing am/pm or :MM so that
	// "at 3pm" leaves nothing behind.
	fillerRe = regexp.MustCompile(`\b(?:today|tomorrow|at \d{1,2}(?:\s*(?:am|pm)|:\d{2})?|on \w+)\b`)

	// timeRe finds the first 1–2 digit hour with an optional am/pm or :MM
	// suffix. The minutes group is matched but never read.
	timeRe = regexp.MustCompile(`(\d{1,2})\s*(am|pm|:\d{2})?`)

	spaceRe = regexp.MustCompile(`\s+`)
)

func triggerPattern(triggers []string) *regexp.Regexp {
	quoted := make([]string, len(triggers))
	for i, t := range triggers {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile("(?:" + strings.Join(quoted, "|") + ")")
}

// Parser classifies utterances against a configurable clock. The zero value is
// not usable; create instances with [NewParser].
type Parser struct {
	now func() time.Time
}

// ParserOption configures a [Parser].
type ParserOption func(*Parser)

// WithClock overrides the clock used to resolve "today" and "tomorrow".
// Defaults to [time.Now].
func WithClock(now func() time.Time) ParserOption {
	return func(p *Parser) {
		p.now = now
	}
}

// NewParser returns a Parser using the wall clock unless overridden.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Parse classifies text using the parser's clock.
func (p *Parser) Parse(text string) Intent {
	return Parse(text, p.now())
}

// Parse classifies text into an [Intent]. now anchors relative dates; it is the
// only input besides text, so Parse is deterministic.
func Parse(text string, now time.Time) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Unrecognized{Text: text}
	}

	switch {
	case containsAny(lower, addTriggers):
		return parseAdd(lower, now)
	case containsAny(lower, deleteTriggers):
		return DeleteTask{Identifier: strings.TrimSpace(deleteTriggerRe.ReplaceAllString(lower, ""))}
	case containsAny(lower, listTriggers):
		return ListTasks{}
	case containsAny(lower, clearTriggers):
		return ClearAll{}
	case containsAny(lower, countTriggers):
		return CountTasks{}
	case containsAny(lower, helpTriggers):
		return Help{}
	}
	return Unrecognized{Text: text}
}

func parseAdd(lower string, now time.Time) AddTask {
	return AddTask{
		Title: extractTitle(lower),
		Date:  extractDate(lower, now),
		Time:  extractTime(lower),
	}
}

func extractTitle(lower string) string {
	title := addTriggerRe.ReplaceAllString(lower, "")
	title = fillerRe.ReplaceAllString(title, "")
	title = strings.TrimSpace(spaceRe.ReplaceAllString(title, " "))
	return capitalize(title)
}

// extractDate recognises only "today" and "tomorrow"; "today" wins when both
// appear.
func extractDate(lower string, now time.Time) *types.Date {
	today := types.DateOf(now)
	switch {
	case strings.Contains(lower, "today"):
		return &today
	case strings.Contains(lower, "tomorrow"):
		d := today.AddDays(1)
		return &d
	}
	return nil
}

// extractTime returns the first hour found in lower. Minutes are always zero.
// An hour outside 0–23 yields no time rather than an error.
func extractTime(lower string) *types.TimeOfDay {
	m := timeRe.FindStringSubmatch(lower)
	if m == nil {
		return nil
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	if strings.Contains(m[2], "pm") && hour < 12 {
		hour += 12
	}
	t := types.TimeOfDay{Hour: hour}
	if !t.Valid() {
		return nil
	}
	return &t
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// capitalize upper-cases the first rune of s and leaves the rest untouched.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
