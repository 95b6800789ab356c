// Package taskmeta extracts inline task metadata (checkbox, due date, priority)
// from a node's text. It has no state and never fails: anything it cannot
// interpret is left in the display text.
package taskmeta

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"jotline/internal/model"
)

type Result struct {
	IsTask      bool           `json:"isTask"`
	Completed   bool           `json:"completed"`
	DueDate     model.Date     `json:"dueDate,omitempty"`
	Priority    model.Priority `json:"priority,omitempty"`
	DisplayText string         `json:"displayText"`
}

var checkboxTokens = []struct {
	tok       string
	completed bool
}{
	{"[ ]", false},
	{"[]", false},
	{"[x]", true},
	{"[X]", true},
}

// CheckboxPrefix is the canonical stored prefix for a task line.
func CheckboxPrefix(completed bool) string {
	if completed {
		return "[x] "
	}
	return "[ ] "
}

// StripCheckbox removes a leading checkbox token. ok is false when content does
// not start with one.
func StripCheckbox(content string) (body string, completed bool, ok bool) {
	s := strings.TrimLeftFunc(content, unicode.IsSpace)
	for _, c := range checkboxTokens {
		if !strings.HasPrefix(s, c.tok) {
			continue
		}
		rest := s[len(c.tok):]
		if rest != "" {
			r := []rune(rest)[0]
			if !unicode.IsSpace(r) {
				continue
			}
		}
		return strings.TrimLeftFunc(rest, unicode.IsSpace), c.completed, true
	}
	return content, false, false
}

// Parse interprets content relative to now. Only the first date token and the
// first priority token are consumed; later occurrences stay in DisplayText.
// Tokens are whitespace-delimited and may carry trailing punctuation, which is
// kept on the preceding word ("call @tomorrow, then" shows "call, then").
// Whitespace other than the separator before a consumed token is preserved.
func Parse(content string, now time.Time) Result {
	var res Result
	body := content
	if b, completed, ok := StripCheckbox(content); ok {
		res.IsTask = true
		res.Completed = completed
		body = b
	}

	today := model.DateOf(now)
	segs := segmentize(body)
	for i := range segs {
		if segs[i].space {
			continue
		}
		word, punct := splitPunct(segs[i].text)
		consumed := false
		if res.DueDate == "" && strings.HasPrefix(word, "@") && len(word) > 1 {
			if d, ok := resolveDate(word[1:], today, now); ok {
				res.DueDate = d
				consumed = true
			}
		}
		if !consumed && res.Priority == "" {
			if p, ok := priorityToken(word); ok {
				res.Priority = p
				consumed = true
			}
		}
		if consumed {
			segs[i].text = punct
			segs[i].token = true
		}
	}
	res.DisplayText = joinSegments(segs)
	return res
}

type segment struct {
	text  string
	space bool
	token bool
}

// segmentize cuts s into alternating runs of whitespace and words.
func segmentize(s string) []segment {
	var out []segment
	for s != "" {
		r, _ := utf8.DecodeRuneInString(s)
		space := unicode.IsSpace(r)
		i := strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) != space })
		if i < 0 {
			i = len(s)
		}
		out = append(out, segment{text: s[:i], space: space})
		s = s[i:]
	}
	return out
}

const trailingPunct = ",.;:)"

func splitPunct(w string) (word, punct string) {
	word = strings.TrimRight(w, trailingPunct)
	return word, w[len(word):]
}

// joinSegments drops consumed tokens together with the whitespace before them.
// Leading whitespace is dropped, trailing whitespace kept.
func joinSegments(segs []segment) string {
	var b strings.Builder
	pending := ""
	for _, sg := range segs {
		switch {
		case sg.space:
			pending += sg.text
		case sg.token:
			pending = ""
			if sg.text != "" && b.Len() > 0 {
				b.WriteString(sg.text)
			}
		default:
			if b.Len() > 0 {
				b.WriteString(pending)
			}
			pending = ""
			b.WriteString(sg.text)
		}
	}
	if b.Len() > 0 {
		b.WriteString(pending)
	}
	return b.String()
}

func priorityToken(f string) (model.Priority, bool) {
	if f == "" || strings.Trim(f, "!") != "" {
		return "", false
	}
	switch len(f) {
	case 1:
		return model.PriorityLow, true
	case 2:
		return model.PriorityMedium, true
	case 3:
		return model.PriorityHigh, true
	default:
		return "", false
	}
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ResolveDate resolves a date keyword without the leading '@': today,
// tomorrow, yesterday, a weekday, an ISO date or a hyphenated phrase.
func ResolveDate(kw string, now time.Time) (model.Date, bool) {
	return resolveDate(kw, model.DateOf(now), now)
}

func resolveDate(kw string, today model.Date, now time.Time) (model.Date, bool) {
	kw = strings.ToLower(strings.TrimSpace(kw))
	switch kw {
	case "":
		return "", false
	case "today":
		return today, true
	case "tomorrow":
		return today.AddDays(1), true
	case "yesterday":
		return today.AddDays(-1), true
	}
	if wd, ok := weekdays[kw]; ok {
		// Inclusive: a weekday keyword naming today resolves to today.
		delta := (int(wd) - int(today.Weekday()) + 7) % 7
		return today.AddDays(delta), true
	}
	if looksISO(kw) {
		d, err := model.ParseDate(kw)
		if err != nil {
			return "", false
		}
		return d, true
	}
	return naturalDate(kw, now)
}

func looksISO(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, c := range s {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var naturalParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// naturalDate handles hyphenated phrases such as "next-friday" or "in-3-days".
// The whole phrase must be matched; partial matches are treated as no date.
func naturalDate(kw string, now time.Time) (model.Date, bool) {
	if !strings.Contains(kw, "-") {
		return "", false
	}
	phrase := strings.Join(strings.FieldsFunc(kw, func(r rune) bool { return r == '-' }), " ")
	if phrase == "" {
		return "", false
	}
	r, err := naturalParser.Parse(phrase, now)
	if err != nil || r == nil {
		return "", false
	}
	if !strings.EqualFold(strings.TrimSpace(r.Text), phrase) {
		return "", false
	}
	return model.DateOf(r.Time), true
}
