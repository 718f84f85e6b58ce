package domain

import "time"

// WarmupStatus is the lifecycle state of a WarmupSchedule.
type WarmupStatus string

const (
	WarmupActive    WarmupStatus = "active"
	WarmupPaused    WarmupStatus = "paused"
	WarmupCompleted WarmupStatus = "completed"
)

// DefaultWarmupDays is the ramp length used when none is given.
const DefaultWarmupDays = 30

// WarmupSchedule ramps up sending volume for one mailbox.
type WarmupSchedule struct {
	ID                string       `json:"id" db:"id"`
	MailboxID         string       `json:"mailbox_id" db:"mailbox_id"`
	Day               int          `json:"day" db:"day"`
	TargetDay         int          `json:"target_day" db:"target_day"`
	EmailsSentToday   int          `json:"emails_sent_today" db:"emails_sent_today"`
	EmailsTargetToday int          `json:"emails_target_today" db:"emails_target_today"`
	Status            WarmupStatus `json:"status" db:"status"`
	StartedAt         time.Time    `json:"started_at" db:"started_at"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}

var warmupSteps = []struct {
	maxDay int
	target int
}{
	{3, 5},
	{7, 10},
	{14, 20},
	{21, 50},
	{30, 100},
}

// TargetForDay is the daily volume for a ramp day.
func TargetForDay(day int) int {
	for _, s := range warmupSteps {
		if day <= s.maxDay {
			return s.target
		}
	}
	return 150
}

// NewWarmupSchedule creates an active schedule on day one.
func NewWarmupSchedule(mailboxID string, targetDays int, now time.Time) *WarmupSchedule {
	if targetDays <= 0 {
		targetDays = DefaultWarmupDays
	}
	return &WarmupSchedule{
		MailboxID:         mailboxID,
		Day:               1,
		TargetDay:         targetDays,
		EmailsTargetToday: TargetForDay(1),
		Status:            WarmupActive,
		StartedAt:         now,
	}
}

// CanSendToday reports whether the schedule still has room today.
func (w *WarmupSchedule) CanSendToday() bool {
	return w.Status == WarmupActive && w.EmailsSentToday < w.EmailsTargetToday
}

// Remaining is the number of sends left for today.
func (w *WarmupSchedule) Remaining() int {
	if n := w.EmailsTargetToday - w.EmailsSentToday; n > 0 {
		return n
	}
	return 0
}

// RecordSent counts one send and advances the day when the target is met.
func (w *WarmupSchedule) RecordSent(now time.Time) {
	w.EmailsSentToday++
	if w.EmailsSentToday >= w.EmailsTargetToday {
		w.AdvanceDay(now)
	}
}

// AdvanceDay moves to the next ramp day. The schedule completes once the day
// passes TargetDay.
func (w *WarmupSchedule) AdvanceDay(now time.Time) {
	w.Day++
	w.EmailsSentToday = 0
	w.EmailsTargetToday = TargetForDay(w.Day)
	if w.Day > w.TargetDay {
		w.Status = WarmupCompleted
		t := now
		w.CompletedAt = &t
	}
}

// Progress is the completed share of the ramp, 0–100.
func (w *WarmupSchedule) Progress() float64 {
	if w.TargetDay <= 0 {
		return 0
	}
	p := float64(w.Day) / float64(w.TargetDay) * 100
	if p > 100 {
		return 100
	}
	return p
}
