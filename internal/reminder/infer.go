package reminder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Heuristic trigger parser: maps free-form action text to a notification type
// and, when the text mentions a time, a normalized "HH:MM" clock string.
// Used at task creation/edit time only; the scheduling core never calls this.

var clockRe = regexp.MustCompile(`(\d{1,2})([:.]?)(\d{0,2})\s*(am|pm)?`)

var (
	alarmWords  = []string{"wake me", "alarm", "remind me"}
	bannerWords = []string{"check", "read", "email", "meeting"}
)

// InferType picks a notification type from keywords in the action text.
func InferType(action string) string {
	lower := strings.ToLower(action)
	for _, w := range alarmWords {
		if strings.Contains(lower, w) {
			return NotifyAlarm
		}
	}
	for _, w := range bannerWords {
		if strings.Contains(lower, w) {
			return NotifyBanner
		}
	}
	return NotifyPush
}

// Infer returns (notificationType, clock) extracted from action text.
// clock is "" when no time is mentioned.
//
// Example: "Wake me at 7:30 pm" -> ("alarm", "19:30").
func Infer(action string) (string, string) {
	typ := InferType(action)

	m := clockRe.FindStringSubmatch(strings.ToLower(action))
	if m == nil {
		return typ, ""
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[3] != "" {
		minute, _ = strconv.Atoi(m[3])
	}
	switch m[4] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return typ, ""
	}
	return typ, fmt.Sprintf("%02d:%02d", hour, minute)
}
