package domain

import "time"

// SpamComplaint is a feedback loop report from a mailbox provider.
type SpamComplaint struct {
	ID            string    `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	SendLogID     string    `json:"send_log_id,omitempty" db:"send_log_id"`
	ComplaintType string    `json:"complaint_type" db:"complaint_type"`
	FeedbackType  string    `json:"feedback_type,omitempty" db:"feedback_type"`
	Provider      string    `json:"provider,omitempty" db:"provider"`
	RawReport     string    `json:"-" db:"raw_report"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ComplaintTypeSpam is the complaint type that triggers suppression.
const ComplaintTypeSpam = "spam"

// ComplaintRate returns complaints per hundred sends.
func ComplaintRate(complaints, sent int) float64 {
	if sent == 0 {
		return 0
	}
	return float64(complaints) / float64(sent) * 100
}
