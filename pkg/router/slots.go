package router

import (
	"fmt"
	"regexp"
	"strings"
)

// EventDetails holds scheduling slots extracted from a message.
type EventDetails struct {
	Title string
	Date  string
	Time  string
}

var (
	clockTimeRe = regexp.MustCompile(`(\d{1,2})[:.](\d{2})`)
	atHourRe    = regexp.MustCompile(`\bat\s+(\d{1,2})\b`)
	dateRe      = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?[\s/.-]*(january|february|march|april|may|june|july|august|september|october|november|december|\d{1,2})\b`)
)

var dateKeywords = []string{
	"today", "tomorrow", "day after tomorrow",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

var titleIndicators = []string{
	"meeting", "appointment", "event", "call", "standup", "review", "interview", "lunch", "dinner",
}

// ExtractEventDetails pulls date, time, and title hints from a scheduling
// message. Empty fields mean the slot was not found.
func ExtractEventDetails(message string) EventDetails {
	lower := strings.ToLower(message)
	var details EventDetails

	if m := clockTimeRe.FindStringSubmatch(lower); m != nil {
		details.Time = m[1] + ":" + m[2]
	} else if m := atHourRe.FindStringSubmatch(lower); m != nil {
		details.Time = fmt.Sprintf("%s:00", m[1])
	}

	for _, kw := range dateKeywords {
		if strings.Contains(lower, kw) {
			details.Date = kw
			break
		}
	}
	// Explicit dates like "15 December" or "15/12" win over keywords.
	if m := dateRe.FindString(message); m != "" {
		details.Date = m
	}

	for _, ind := range titleIndicators {
		if strings.Contains(lower, ind) {
			details.Title = ind
			break
		}
	}

	return details
}

var dateTimeQuestions = []string{
	"what day is it",
	"what day is today",
	"today's date",
	"what is the date",
	"what's the date",
	"current date",
	"what time is it",
	"what's the time",
	"current time",
}

// isDateTimeQuestion reports whether the user is asking about the current
// date or time.
func isDateTimeQuestion(message string) bool {
	lower := strings.ToLower(message)
	for _, q := range dateTimeQuestions {
		if strings.Contains(lower, q) {
			return true
		}
	}
	return false
}
