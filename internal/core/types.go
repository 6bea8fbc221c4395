package core

import (
	"image"
	"time"
)

const (
	BotName    = "ReplyBot"
	BotVersion = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a model prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageRecord is the audit entry for one detected inbound message.
type MessageRecord struct {
	ID          int64     `json:"id"`
	Sender      string    `json:"sender"`
	Message     string    `json:"message"`
	Response    string    `json:"response,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	AutoReplied bool      `json:"auto_replied"`
}

// Day returns the calendar day the record is accounted to.
func (r MessageRecord) Day() string {
	return DayOf(r.Timestamp)
}

// HistoryEntry is one persisted turn of a sender's session.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DailyCounter holds the number of replies dispatched on one day.
type DailyCounter struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TotalStats is the aggregate view served to the dashboard.
type TotalStats struct {
	TotalMessages   int     `json:"total_messages"`
	AutoReplies     int     `json:"auto_replies"`
	UniqueSenders   int     `json:"unique_senders"`
	AutoReplyRate   float64 `json:"auto_reply_rate"`
	AvgDailyReplies float64 `json:"avg_daily_replies"`
}

// MessageFilter narrows ListMessages. Zero values mean "no filter".
type MessageFilter struct {
	Sender string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// Frame is one capture of the monitored chat region.
type Frame struct {
	Image      image.Image
	CapturedAt time.Time
}

func (f Frame) Empty() bool {
	return f.Image == nil || f.Image.Bounds().Empty()
}

// OCRLine is a recognised line of text with the engine's confidence (0-100).
type OCRLine struct {
	Text       string
	Confidence float64
}

// Detection is the result of one detector pass.
type Detection struct {
	Found  bool
	Sender string
	Text   string
	Frame  Frame
}

// DayOf formats t as the local calendar day used for quota accounting.
func DayOf(t time.Time) string {
	return t.Local().Format(time.DateOnly)
}
