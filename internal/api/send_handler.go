package api

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/ignite/mailcore/internal/domain"
	"github.com/ignite/mailcore/internal/mta"
	"github.com/ignite/mailcore/internal/pkg/httputil"
)

const (
	maxSubjectLength = 255
	maxBulkItems     = 100
)

type sendRequest struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	IsHTML   bool              `json:"is_html"`
	Type     string            `json:"type"`
	Headers  map[string]string `json:"headers"`
	Metadata map[string]any    `json:"metadata"`
}

func (req sendRequest) validate(errs httputil.ValidationErrors, prefix string) {
	if strings.TrimSpace(req.From) == "" {
		errs.Add(prefix+"from", "The from field is required.")
	} else if !validEmail(req.From) {
		errs.Add(prefix+"from", "The from field must be a valid email address.")
	}
	if strings.TrimSpace(req.To) == "" {
		errs.Add(prefix+"to", "The to field is required.")
	} else if !validEmail(req.To) {
		errs.Add(prefix+"to", "The to field must be a valid email address.")
	}
	if strings.TrimSpace(req.Subject) == "" {
		errs.Add(prefix+"subject", "The subject field is required.")
	} else if utf8.RuneCountInString(req.Subject) > maxSubjectLength {
		errs.Add(prefix+"subject", fmt.Sprintf("The subject may not be greater than %d characters.", maxSubjectLength))
	}
	if strings.TrimSpace(req.Body) == "" {
		errs.Add(prefix+"body", "The body field is required.")
	}
	switch domain.EmailType(req.Type) {
	case "", domain.EmailMarketing, domain.EmailTransactional:
	default:
		errs.Add(prefix+"type", "The type must be marketing or transactional.")
	}
	for k := range req.Headers {
		if !mta.ValidHeaderName(k) {
			errs.Add(prefix+"headers", fmt.Sprintf("The header name %q is invalid.", k))
			break
		}
	}
}

func (req sendRequest) message() domain.OutboundMessage {
	return domain.OutboundMessage{
		From:     req.From,
		To:       req.To,
		Subject:  req.Subject,
		Body:     req.Body,
		HTML:     req.IsHTML,
		Type:     domain.ParseEmailType(req.Type),
		Headers:  req.Headers,
		Metadata: req.Metadata,
	}
}

// validEmail accepts a bare address only, not "Name <addr>".
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == strings.TrimSpace(s)
}

// HandleSend sends one message.
//
//	POST /api/send
func (h *Handlers) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	errs := httputil.ValidationErrors{}
	req.validate(errs, "")
	if len(errs) > 0 {
		httputil.Unprocessable(w, errs)
		return
	}

	res := h.sender.Send(r.Context(), requestContext(r), req.message())
	if !res.Success {
		httputil.JSON(w, http.StatusBadRequest, res)
		return
	}
	httputil.OK(w, res)
}

type bulkRequest struct {
	Emails []sendRequest `json:"emails"`
}

type bulkResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    bulkSummary `json:"data"`
}

type bulkSummary struct {
	SuccessCount int                `json:"success_count"`
	FailedCount  int                `json:"failed_count"`
	Errors       []domain.BulkError `json:"errors"`
}

// HandleSendBulk sends up to 100 messages. Items are independent; one
// failure does not stop the rest.
//
//	POST /api/send/bulk
func (h *Handlers) HandleSendBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	errs := httputil.ValidationErrors{}
	switch n := len(req.Emails); {
	case n == 0:
		errs.Add("emails", "The emails field must have at least 1 item.")
	case n > maxBulkItems:
		errs.Add("emails", fmt.Sprintf("The emails field may not have more than %d items.", maxBulkItems))
	}
	for i, item := range req.Emails {
		item.validate(errs, fmt.Sprintf("emails.%d.", i))
	}
	if len(errs) > 0 {
		httputil.Unprocessable(w, errs)
		return
	}

	msgs := make([]domain.OutboundMessage, len(req.Emails))
	for i, item := range req.Emails {
		msgs[i] = item.message()
	}
	res := h.sender.SendBulk(r.Context(), requestContext(r), msgs)
	if res.Errors == nil {
		res.Errors = []domain.BulkError{}
	}
	httputil.OK(w, bulkResponse{
		Success: true,
		Message: "Bulk send completed",
		Data: bulkSummary{
			SuccessCount: res.Success,
			FailedCount:  res.Failed,
			Errors:       res.Errors,
		},
	})
}
