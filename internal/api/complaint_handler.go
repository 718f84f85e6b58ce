package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"net/mail"
	"strings"

	"github.com/ignite/mailcore/internal/pkg/httputil"
	"github.com/ignite/mailcore/internal/service/spamfilter"
)

const maxReportBytes = 2 * 1024 * 1024

// feedbackReport is what could be extracted from an inbound complaint.
type feedbackReport struct {
	Recipient    string
	MessageID    string
	FeedbackType string
	Provider     string
}

// HandleComplaint ingests a feedback loop complaint (RFC 5965 ARF). Accepts
// multipart/report, a bare message/feedback-report part, a JSON webhook or a
// plain-text address.
//
//	POST /api/complaints
func (h *Handlers) HandleComplaint(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBytes))
	if err != nil {
		httputil.BadRequest(w, "read error")
		return
	}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	var fr feedbackReport
	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		fr = parseARFMultipart(body, params["boundary"])
	case mediaType == "application/json":
		fr = parseJSONComplaint(body)
	case mediaType == "message/feedback-report":
		fr = parseFeedbackReport(body)
	default:
		fr.Recipient = strings.TrimSpace(string(body))
	}

	if fr.Recipient == "" || !validEmail(fr.Recipient) {
		httputil.BadRequest(w, "no recipient found")
		return
	}

	log.Printf("[API] Complaint received (provider=%s, type=%s, message=%s)", fr.Provider, fr.FeedbackType, fr.MessageID)

	sc, err := h.complaints.RecordComplaint(r.Context(), requestContext(r), spamfilter.Complaint{
		Email:        fr.Recipient,
		MessageID:    fr.MessageID,
		FeedbackType: fr.FeedbackType,
		Provider:     fr.Provider,
		RawReport:    string(body),
	})
	if errors.Is(err, spamfilter.ErrEmailRequired) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "failed to record complaint")
		return
	}
	httputil.OK(w, map[string]string{"status": "processed", "complaint_id": sc.ID})
}

func parseARFMultipart(body []byte, boundary string) feedbackReport {
	var fr feedbackReport
	if boundary == "" {
		return fr
	}
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		ct := part.Header.Get("Content-Type")
		partBody, _ := io.ReadAll(part)

		switch {
		case strings.Contains(ct, "message/feedback-report"):
			report := parseFeedbackReport(partBody)
			if report.Recipient != "" {
				fr.Recipient = report.Recipient
			}
			fr.FeedbackType = report.FeedbackType
			fr.Provider = report.Provider
		case strings.Contains(ct, "message/rfc822"), strings.Contains(ct, "text/rfc822-headers"):
			msg, err := mail.ReadMessage(bytes.NewReader(partBody))
			if err != nil {
				continue
			}
			if to := msg.Header.Get("To"); to != "" && fr.Recipient == "" {
				if addr, err := mail.ParseAddress(to); err == nil {
					fr.Recipient = addr.Address
				}
			}
			if id := msg.Header.Get("Message-ID"); id != "" {
				fr.MessageID = strings.Trim(strings.TrimSpace(id), "<>")
			}
		}
	}
	return fr
}

func parseFeedbackReport(body []byte) feedbackReport {
	var fr feedbackReport
	for _, line := range strings.Split(string(body), "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "original-rcpt-to":
			fr.Recipient = strings.TrimPrefix(strings.ToLower(val), "rfc822;")
			fr.Recipient = strings.TrimSpace(fr.Recipient)
		case "removal-recipient":
			if fr.Recipient == "" {
				fr.Recipient = val
			}
		case "feedback-type":
			fr.FeedbackType = strings.ToLower(val)
		case "reported-domain", "user-agent":
			if fr.Provider == "" {
				fr.Provider = val
			}
		}
	}
	return fr
}

func parseJSONComplaint(body []byte) feedbackReport {
	var payload struct {
		Email        string `json:"email"`
		Recipient    string `json:"recipient"`
		MessageID    string `json:"message_id"`
		FeedbackType string `json:"feedback_type"`
		Provider     string `json:"provider"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return feedbackReport{}
	}
	fr := feedbackReport{
		Recipient:    payload.Email,
		MessageID:    strings.Trim(payload.MessageID, "<>"),
		FeedbackType: payload.FeedbackType,
		Provider:     payload.Provider,
	}
	if fr.Recipient == "" {
		fr.Recipient = payload.Recipient
	}
	return fr
}
