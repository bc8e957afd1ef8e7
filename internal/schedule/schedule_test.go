// VIXWatch - Daily VIX and S&P 500 Report Scheduler
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vixwatch

package schedule

import (
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/vixwatch/internal/clock"
)

func seoulResolver(t *testing.T) *clock.Resolver {
	t.Helper()
	r, err := clock.LoadResolver("Asia/Seoul", "America/New_York", nil)
	if err != nil {
		t.Fatalf("LoadResolver: %v", err)
	}
	return r
}

func TestNextTrigger_Scenarios(t *testing.T) {
	r := seoulResolver(t)
	kst := r.Location()
	cfg := Config{Hour: 6, Minute: 0}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "one minute before target returns today",
			now:  time.Date(2026, 4, 14, 5, 59, 0, 0, kst),
			want: time.Date(2026, 4, 14, 6, 0, 0, 0, kst),
		},
		{
			name: "just past target rolls to tomorrow",
			now:  time.Date(2026, 4, 14, 6, 0, 30, 0, kst),
			want: time.Date(2026, 4, 15, 6, 0, 0, 0, kst),
		},
		{
			name: "exactly at target rolls to tomorrow",
			now:  time.Date(2026, 4, 14, 6, 0, 0, 0, kst),
			want: time.Date(2026, 4, 15, 6, 0, 0, 0, kst),
		},
		{
			name: "month boundary",
			now:  time.Date(2026, 4, 30, 23, 0, 0, 0, kst),
			want: time.Date(2026, 5, 1, 6, 0, 0, 0, kst),
		},
		{
			name: "instant given in UTC is read in scheduling zone",
			now:  time.Date(2026, 4, 13, 20, 59, 0, 0, time.UTC),
			want: time.Date(2026, 4, 14, 6, 0, 0, 0, kst),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextTrigger(tt.now, cfg, r)
			if !got.Equal(tt.want) {
				t.Errorf("NextTrigger(%v) = %v, want %v", tt.now, got, tt.want)
			}
			if again := NextTrigger(tt.now, cfg, r); !again.Equal(got) {
				t.Errorf("second call = %v, want %v", again, got)
			}
		})
	}
}

func TestNextTrigger_Monotonic(t *testing.T) {
	r := seoulResolver(t)
	kst := r.Location()
	cfg := Config{Hour: 8, Minute: 0, ObservesDSTCorrection: true}

	ranges := []struct {
		name       string
		start, end time.Time
	}{
		{"spring forward", time.Date(2026, 2, 25, 0, 0, 0, 0, kst), time.Date(2026, 3, 20, 0, 0, 0, 0, kst)},
		{"fall back", time.Date(2026, 10, 20, 0, 0, 0, 0, kst), time.Date(2026, 11, 12, 0, 0, 0, 0, kst)},
	}

	for _, rg := range ranges {
		t.Run(rg.name, func(t *testing.T) {
			var prev time.Time
			for now := rg.start; now.Before(rg.end); now = now.Add(7 * time.Minute) {
				next := NextTrigger(now, cfg, r)
				if !next.After(now) {
					t.Fatalf("NextTrigger(%v) = %v, not strictly after now", now, next)
				}
				if next.Before(prev) {
					t.Fatalf("NextTrigger(%v) = %v, earlier than previous %v", now, next, prev)
				}
				prev = next
			}
		})
	}
}

func TestNextTrigger_MidnightTargetUnderDST(t *testing.T) {
	r := seoulResolver(t)
	kst := r.Location()
	cfg := Config{Hour: 0, Minute: 0, ObservesDSTCorrection: true}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			// 11-01's trigger fired at 10-31 23:00; 11-02 is EST.
			name: "fall back early morning goes to next midnight",
			now:  time.Date(2026, 11, 1, 0, 30, 0, 0, kst),
			want: time.Date(2026, 11, 2, 0, 0, 0, 0, kst),
		},
		{
			name: "fall back late evening agrees with early morning",
			now:  time.Date(2026, 11, 1, 23, 30, 0, 0, kst),
			want: time.Date(2026, 11, 2, 0, 0, 0, 0, kst),
		},
		{
			name: "EDT target lands on previous evening",
			now:  time.Date(2026, 10, 31, 22, 30, 0, 0, kst),
			want: time.Date(2026, 10, 31, 23, 0, 0, 0, kst),
		},
		{
			// 03-09 is EDT, so its trigger is 03-08 23:00.
			name: "spring forward does not skip a day",
			now:  time.Date(2026, 3, 8, 0, 30, 0, 0, kst),
			want: time.Date(2026, 3, 8, 23, 0, 0, 0, kst),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextTrigger(tt.now, cfg, r)
			if !got.Equal(tt.want) {
				t.Errorf("NextTrigger(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestDateKey(t *testing.T) {
	r := seoulResolver(t)
	kst := r.Location()
	midnight := Config{Hour: 0, Minute: 0, ObservesDSTCorrection: true}

	tests := []struct {
		name    string
		cfg     Config
		trigger time.Time
		want    Date
	}{
		{
			name:    "shifted midnight belongs to next day",
			cfg:     midnight,
			trigger: time.Date(2026, 3, 8, 23, 0, 0, 0, kst),
			want:    Date{Year: 2026, Month: time.March, Day: 9},
		},
		{
			name:    "unshifted midnight keeps its own day",
			cfg:     midnight,
			trigger: time.Date(2026, 11, 2, 0, 0, 0, 0, kst),
			want:    Date{Year: 2026, Month: time.November, Day: 2},
		},
		{
			name:    "plain target keeps its own day",
			cfg:     Config{Hour: 23, Minute: 0},
			trigger: time.Date(2026, 3, 8, 23, 0, 0, 0, kst),
			want:    Date{Year: 2026, Month: time.March, Day: 8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DateKey(tt.trigger, tt.cfg, r); got != tt.want {
				t.Errorf("DateKey(%v) = %v, want %v", tt.trigger, got, tt.want)
			}
		})
	}
}

func TestNextTrigger_RecomputesTomorrowRegime(t *testing.T) {
	r := seoulResolver(t)
	kst := r.Location()
	cfg := Config{Hour: 8, Minute: 0, ObservesDSTCorrection: true}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			// 03-08 is still EST at 08:00 KST; 03-09 is EDT.
			name: "spring forward moves tomorrow earlier",
			now:  time.Date(2026, 3, 8, 8, 30, 0, 0, kst),
			want: time.Date(2026, 3, 9, 7, 0, 0, 0, kst),
		},
		{
			name: "today before target keeps today's regime",
			now:  time.Date(2026, 3, 8, 7, 30, 0, 0, kst),
			want: time.Date(2026, 3, 8, 8, 0, 0, 0, kst),
		},
		{
			// 11-01 is still EDT at 08:00 KST; 11-02 is EST.
			name: "fall back moves tomorrow later",
			now:  time.Date(2026, 11, 1, 7, 30, 0, 0, kst),
			want: time.Date(2026, 11, 2, 8, 0, 0, 0, kst),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextTrigger(tt.now, cfg, r)
			if !got.Equal(tt.want) {
				t.Errorf("NextTrigger(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestInWindow(t *testing.T) {
	trigger := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	interval := time.Minute

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before", trigger.Add(-time.Second), false},
		{"at start", trigger, true},
		{"inside", trigger.Add(59 * time.Second), true},
		{"at end is outside", trigger.Add(interval), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InWindow(tt.now, trigger, interval); got != tt.want {
				t.Errorf("InWindow = %v, want %v", got, tt.want)
			}
		})
	}

	if InWindow(trigger, time.Time{}, interval) {
		t.Error("zero trigger must never be in window")
	}
}

func TestStore_FreshStateStartsAtSentinel(t *testing.T) {
	r := seoulResolver(t)
	s := NewStore(Config{Hour: 8}, r)

	st := s.Snapshot()
	if st.LastSentDate != SentinelDate {
		t.Errorf("LastSentDate = %s, want %s", st.LastSentDate, SentinelDate)
	}
	if !st.NextTrigger.IsZero() {
		t.Errorf("NextTrigger = %v, want zero", st.NextTrigger)
	}
	if st.LastLivenessProbe != nil {
		t.Error("LastLivenessProbe should be nil")
	}

	today := DateOf(time.Now(), r.Location())
	if !s.MarkSent(today) {
		t.Error("first real date must be accepted after sentinel")
	}
	if got := s.Snapshot().LastSentDate; got != today {
		t.Errorf("LastSentDate = %s, want %s", got, today)
	}

	// A fresh store models a restart: the day is eligible again.
	restarted := NewStore(Config{Hour: 8}, r)
	if !restarted.MarkSent(today) {
		t.Error("restarted store must accept today again")
	}
}

func TestStore_MarkSentOnlyMovesForward(t *testing.T) {
	s := NewStore(Config{}, clock.NewResolver(nil, nil, nil))
	d := Date{Year: 2026, Month: time.June, Day: 10}

	if !s.MarkSent(d) {
		t.Fatal("expected first MarkSent to succeed")
	}
	if s.MarkSent(d) {
		t.Error("same date must not be recorded twice")
	}
	if s.MarkSent(d.AddDays(-1)) {
		t.Error("earlier date must be ignored")
	}
	if got := s.Snapshot().LastSentDate; got != d {
		t.Errorf("LastSentDate = %s, want %s", got, d)
	}
}

func TestStore_UpdateConfigRecomputesTrigger(t *testing.T) {
	r := seoulResolver(t)
	kst := r.Location()
	s := NewStore(Config{Hour: 8}, r)
	now := time.Date(2026, 1, 20, 9, 0, 0, 0, kst)
	s.SetNextTrigger(time.Date(2026, 1, 21, 8, 0, 0, 0, kst))

	next := s.UpdateConfig(Config{Hour: 21, Minute: 15}, now)

	want := time.Date(2026, 1, 20, 21, 15, 0, 0, kst)
	if !next.Equal(want) {
		t.Errorf("UpdateConfig returned %v, want %v", next, want)
	}
	if got := s.Snapshot().NextTrigger; !got.Equal(want) {
		t.Errorf("stored NextTrigger = %v, want %v", got, want)
	}
	if got := s.Config(); got.Hour != 21 || got.Minute != 15 {
		t.Errorf("Config = %+v", got)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore(Config{}, clock.NewResolver(nil, nil, nil))
	probe := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s.RecordLivenessProbe(probe)

	st := s.Snapshot()
	*st.LastLivenessProbe = probe.Add(time.Hour)

	if got := s.Snapshot().LastLivenessProbe; !got.Equal(probe) {
		t.Errorf("mutating a snapshot leaked into the store: %v", got)
	}
}

func TestStore_ConcurrentWriters(t *testing.T) {
	s := NewStore(Config{Hour: 8}, clock.NewResolver(nil, nil, nil))
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				now := base.Add(time.Duration(i*100+j) * time.Minute)
				switch i % 4 {
				case 0:
					s.RecordCheck(now)
				case 1:
					s.RecordLivenessProbe(now)
				case 2:
					s.UpdateConfig(Config{Hour: j % 24}, now)
				default:
					_ = s.Snapshot()
				}
			}
		}(i)
	}
	wg.Wait()

	if s.Snapshot().NextTrigger.IsZero() {
		t.Error("expected UpdateConfig to have stored a trigger")
	}
}

func TestDate(t *testing.T) {
	d := Date{Year: 2026, Month: time.February, Day: 28}

	if got := d.AddDays(1).String(); got != "2026-03-01" {
		t.Errorf("AddDays(1) = %s", got)
	}
	if got := d.AddDays(-59).String(); got != "2025-12-31" {
		t.Errorf("AddDays(-59) = %s", got)
	}
	if d.Weekday() != time.Saturday {
		t.Errorf("Weekday = %v, want Saturday", d.Weekday())
	}
	if !SentinelDate.Before(d) || !d.After(SentinelDate) {
		t.Error("sentinel must order before real dates")
	}

	parsed, err := ParseDate("2026-02-28")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !parsed.Equal(d) {
		t.Errorf("ParseDate = %s, want %s", parsed, d)
	}
	if _, err := ParseDate("28/02/2026"); err == nil {
		t.Error("expected error for malformed date")
	}

	kst, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	utc := time.Date(2026, 2, 27, 16, 0, 0, 0, time.UTC)
	if got := DateOf(utc, kst); !got.Equal(d) {
		t.Errorf("DateOf = %s, want %s", got, d)
	}
}

func TestParseWeekdays(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []time.Weekday
		wantErr bool
	}{
		{"default pair", []string{"sunday", "monday"}, []time.Weekday{time.Sunday, time.Monday}, false},
		{"short and mixed case", []string{" Sat", "SUN"}, []time.Weekday{time.Sunday, time.Saturday}, false},
		{"empty list", nil, []time.Weekday{}, false},
		{"none keyword", []string{"none"}, []time.Weekday{}, false},
		{"blank entries skipped", []string{"", " "}, []time.Weekday{}, false},
		{"unknown name", []string{"funday"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseWeekdays(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWeekdays: %v", err)
			}
			got := set.Days()
			if len(got) != len(tt.want) {
				t.Fatalf("Days() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Days()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}

	if NewWeekdaySet().String() != "none" {
		t.Error("empty set should print none")
	}
	if got := NewWeekdaySet(time.Monday, time.Sunday).String(); got != "Sunday, Monday" {
		t.Errorf("String() = %q", got)
	}
}
