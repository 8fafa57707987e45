package main

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const invalidDate = "Invalid Date"

// displayLocale pairs a language tag with the layout its visitors expect
// from a "toLocaleString" style rendering.
type displayLocale struct {
	Tag    language.Tag
	Layout string
}

var displayLocales = []displayLocale{
	{language.AmericanEnglish, "1/2/2006, 3:04:05 PM"}, // first is the matcher default
	{language.BritishEnglish, "02/01/2006, 15:04:05"},
	{language.German, "2.1.2006, 15:04:05"},
	{language.French, "02/01/2006 15:04:05"},
	{language.Russian, "02.01.2006, 15:04:05"},
}

var localeMatcher = language.NewMatcher(localeTags())

func localeTags() []language.Tag {
	tags := make([]language.Tag, 0, len(displayLocales))
	for _, l := range displayLocales {
		tags = append(tags, l.Tag)
	}
	return tags
}

// supportedLocale looks up a configured locale name such as "en-GB".
func supportedLocale(name string) (displayLocale, bool) {
	tag, err := language.Parse(name)
	if err != nil {
		return displayLocale{}, false
	}
	for _, l := range displayLocales {
		if l.Tag == tag {
			return l, true
		}
	}
	return displayLocale{}, false
}

// matchLocale picks the display locale for an Accept-Language header,
// falling back to the named default when nothing matches.
func matchLocale(acceptLanguage, fallback string) displayLocale {
	def, ok := supportedLocale(fallback)
	if !ok {
		def = displayLocales[0]
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return def
	}
	_, index, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return def
	}
	return displayLocales[index]
}

var errUnparseableTimestamp = errors.New("unparseable timestamp")

// zoned layouts carry their own offset
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z07:00",
}

// naive layouts are read in the display timezone, like a browser reads
// them in its local zone
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// parseTimestamp reads the ISO-like timestamps the currency api produces.
// A nil loc means UTC. Date-only values are always UTC.
func parseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errUnparseableTimestamp
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC); err == nil {
		return t, nil
	}

	return time.Time{}, errUnparseableTimestamp
}

// formatTimestamp renders raw in tz using the locale's layout, or
// "Invalid Date" when raw cannot be read.
func formatTimestamp(raw string, locale displayLocale, tz *time.Location) string {
	if tz == nil {
		tz = time.UTC
	}
	t, err := parseTimestamp(raw, tz)
	if err != nil {
		return invalidDate
	}
	return t.In(tz).Format(locale.Layout)
}
