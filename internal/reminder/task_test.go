package reminder

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"07:30", 7, 30, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{" 9:05 ", 9, 5, false},
		{"25:99", 0, 0, true},
		{"12:60", 0, 0, true},
		{"-1:10", 0, 0, true},
		{"0730", 0, 0, true},
		{"07:30:00", 0, 0, true},
		{"ab:cd", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, c := range cases {
		h, m, err := ParseClock(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", c.in, err)
		}
		if h != c.h || m != c.m {
			t.Fatalf("ParseClock(%q) = %d:%d, want %d:%d", c.in, h, m, c.h, c.m)
		}
	}
}

func TestInWindow(t *testing.T) {
	task := Task{
		WindowStart: date(2025, time.January, 13),
		WindowEnd:   date(2025, time.January, 20),
	}
	if !task.InWindow(date(2025, time.January, 13)) {
		t.Fatalf("start day should be inside (inclusive)")
	}
	if !task.InWindow(date(2025, time.January, 20)) {
		t.Fatalf("end day should be inside (inclusive)")
	}
	if task.InWindow(date(2025, time.January, 21)) {
		t.Fatalf("day after end should be outside")
	}
	if task.InWindow(date(2025, time.January, 12)) {
		t.Fatalf("day before start should be outside")
	}

	open := Task{}
	if !open.InWindow(date(1999, time.July, 1)) {
		t.Fatalf("task without a window is always active")
	}

	startOnly := Task{WindowStart: date(2025, time.March, 1)}
	if startOnly.InWindow(date(2025, time.February, 28)) {
		t.Fatalf("before open-ended start should be outside")
	}
	if !startOnly.InWindow(date(2030, time.January, 1)) {
		t.Fatalf("open-ended end should be inside")
	}
}

func TestInWindowIgnoresTimeOfDay(t *testing.T) {
	task := Task{
		WindowStart: date(2025, time.May, 10),
		WindowEnd:   date(2025, time.May, 10),
	}
	late := time.Date(2025, time.May, 10, 23, 59, 0, 0, time.UTC)
	if !task.InWindow(late) {
		t.Fatalf("same calendar day should be inside regardless of clock")
	}
}

func TestInfer(t *testing.T) {
	cases := []struct {
		action    string
		wantType  string
		wantClock string
	}{
		{"Wake me at 7:30 am", NotifyAlarm, "07:30"},
		{"wake me at 7:30 pm", NotifyAlarm, "19:30"},
		{"Set alarm for 12 am", NotifyAlarm, "00:00"},
		{"remind me at 12 pm", NotifyAlarm, "12:00"},
		{"Check email at 9.15", NotifyBanner, "09:15"},
		{"meeting with the team", NotifyBanner, ""},
		{"buy groceries", NotifyPush, ""},
		{"call mom at 18:45", NotifyPush, "18:45"},
	}
	for _, c := range cases {
		typ, clock := Infer(c.action)
		if typ != c.wantType || clock != c.wantClock {
			t.Fatalf("Infer(%q) = (%q, %q), want (%q, %q)", c.action, typ, clock, c.wantType, c.wantClock)
		}
	}
}

func TestChannelsRoundTrip(t *testing.T) {
	var task Task
	task.SetChannels([]string{" alarm ", "push", ""})
	if task.Channels != "alarm,push" {
		t.Fatalf("unexpected CSV: %q", task.Channels)
	}
	got := task.ChannelList()
	if len(got) != 2 || got[0] != "alarm" || got[1] != "push" {
		t.Fatalf("unexpected list: %v", got)
	}

	empty := Task{}
	if empty.ChannelList() != nil {
		t.Fatalf("empty channels should yield nil list")
	}
}

func TestNotifyDefaults(t *testing.T) {
	task := Task{}
	if task.NotifyTitle() != DefaultTitle {
		t.Fatalf("want default title, got %q", task.NotifyTitle())
	}
	if task.NotifyBody() != DefaultBody {
		t.Fatalf("want default body, got %q", task.NotifyBody())
	}

	task = Task{Title: "Standup", Action: "join the call"}
	if task.NotifyTitle() != "Standup" || task.NotifyBody() != "join the call" {
		t.Fatalf("explicit fields should win: %q %q", task.NotifyTitle(), task.NotifyBody())
	}
}
