package mailchimp

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/goliatone/go-formchimp/core"
)

var RandomWords = []string{
	"rocket", "scheme", "enfix", "bind", "strap",
	"consciousness", "mole", "refuse", "weakness", "reference",
	"introduce", "unit", "variation", "save", "count",
	"expression", "update", "accountant", "press", "boat",
	"squash", "swim", "bounce", "critical", "lead",
	"lift", "distort", "soar", "bow", "agile",
	"minimum", "launch", "chaos", "drawing", "nationalist",
	"arrest", "cunning", "understanding", "ethnic", "determine",
	"needle", "belt", "software", "joy", "collect",
	"loan", "correspondence", "disorder", "section", "suite",
}

const fakeSubscriberDomain = "example.com"

// FakeSubscriber generates throwaway members that satisfy an audience's
// required merge fields.
type FakeSubscriber struct {
	rnd *rand.Rand
	now func() time.Time
}

// NewFakeSubscriber uses src for randomness; nil falls back to a time seeded
// source.
func NewFakeSubscriber(src rand.Source) *FakeSubscriber {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>1)
	}
	return &FakeSubscriber{
		rnd: rand.New(src),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (f *FakeSubscriber) word() string {
	return RandomWords[f.rnd.IntN(len(RandomWords))]
}

// Generate builds a subscribed member payload. Only required merge fields get
// values.
func (f *FakeSubscriber) Generate(fields []core.MergeField) core.MemberPayload {
	payload := core.MemberPayload{
		EmailAddress: fmt.Sprintf("%s.%s%d@%s", f.word(), f.word(), f.rnd.IntN(10000), fakeSubscriberDomain),
		Status:       core.SubscriberStatusSubscribed,
		MergeFields:  map[string]any{},
	}
	for _, field := range fields {
		if !field.Required || strings.TrimSpace(field.Tag) == "" {
			continue
		}
		payload.MergeFields[field.Tag] = f.value(field)
	}
	return payload
}

func (f *FakeSubscriber) value(field core.MergeField) any {
	switch field.Type {
	case core.MergeFieldTypeNumber:
		return f.rnd.IntN(1000)
	case core.MergeFieldTypeAddress:
		return map[string]any{
			"addr1":   fmt.Sprintf("%d %s St", 1+f.rnd.IntN(999), capitalize(f.word())),
			"city":    capitalize(f.word()),
			"state":   "CA",
			"zip":     "90210",
			"country": "US",
		}
	case core.MergeFieldTypePhone:
		return fmt.Sprintf("555-555-%04d", f.rnd.IntN(10000))
	case core.MergeFieldTypeDate:
		return f.date(field.Tag, field.Options.DateFormat, core.DateFormatMonthDayYear)
	case core.MergeFieldTypeBirthday:
		return f.date(field.Tag, field.Options.DateFormat, core.DateFormatMonthDay)
	case core.MergeFieldTypeURL, core.MergeFieldTypeImageURL:
		return "https://" + fakeSubscriberDomain + "/" + f.word()
	case core.MergeFieldTypeRadio, core.MergeFieldTypeDropdown:
		if len(field.Options.Choices) > 0 {
			return field.Options.Choices[f.rnd.IntN(len(field.Options.Choices))]
		}
		return f.word()
	case core.MergeFieldTypeZip:
		return "90210"
	case core.MergeFieldTypeEmail:
		return f.word() + "@" + fakeSubscriberDomain
	default:
		return capitalize(f.word())
	}
}

func (f *FakeSubscriber) date(tag string, format string, fallback string) string {
	if strings.TrimSpace(format) == "" {
		format = fallback
	}
	value, err := core.ConvertDate(tag, f.now().Format(time.DateOnly), map[string]string{tag: format})
	if err != nil {
		return f.now().Format("01/02")
	}
	return value
}

func capitalize(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + word[1:]
}
