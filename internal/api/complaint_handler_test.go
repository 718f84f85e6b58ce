package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arfReport = "--BOUNDARY\r\n" +
	"Content-Type: text/plain; charset=us-ascii\r\n" +
	"\r\n" +
	"This is an email abuse report.\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: message/feedback-report\r\n" +
	"\r\n" +
	"Feedback-Type: abuse\r\n" +
	"User-Agent: YahooFBL/1.0\r\n" +
	"Version: 1\r\n" +
	"Original-Rcpt-To: rfc822; Victim@Example.org\r\n" +
	"Reported-Domain: example.com\r\n" +
	"\r\n" +
	"--BOUNDARY\r\n" +
	"Content-Type: message/rfc822\r\n" +
	"\r\n" +
	"From: news@example.com\r\n" +
	"To: other@example.org\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"Subject: Hello\r\n" +
	"\r\n" +
	"Body\r\n" +
	"--BOUNDARY--\r\n"

func TestComplaintARF(t *testing.T) {
	env := setupTestRouter(t, 60)

	rec := env.do(http.MethodPost, "/api/complaints", `multipart/report; report-type=feedback-report; boundary="BOUNDARY"`, arfReport, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, env.complaints.got, 1)
	c := env.complaints.got[0]
	assert.Equal(t, "victim@example.org", c.Email)
	assert.Equal(t, "abc123@example.com", c.MessageID)
	assert.Equal(t, "abuse", c.FeedbackType)
	assert.Equal(t, "YahooFBL/1.0", c.Provider)
	assert.Equal(t, arfReport, c.RawReport)
	assert.Equal(t, "sc-1", decodeBody(t, rec)["complaint_id"])
}

func TestComplaintFallsBackToEmbeddedTo(t *testing.T) {
	report := strings.Replace(arfReport, "Original-Rcpt-To: rfc822; Victim@Example.org\r\n", "", 1)
	env := setupTestRouter(t, 60)

	rec := env.do(http.MethodPost, "/api/complaints", `multipart/report; boundary=BOUNDARY`, report, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "other@example.org", env.complaints.got[0].Email)
}

func TestComplaintJSONAndPlain(t *testing.T) {
	env := setupTestRouter(t, 60)

	rec := env.do(http.MethodPost, "/api/complaints", "application/json",
		`{"recipient":"j@example.org","message_id":"<m1@example.com>","provider":"outlook"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "j@example.org", env.complaints.got[0].Email)
	assert.Equal(t, "m1@example.com", env.complaints.got[0].MessageID)

	rec = env.do(http.MethodPost, "/api/complaints", "text/plain", "  p@example.org\n", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p@example.org", env.complaints.got[1].Email)
}

func TestComplaintWithoutRecipient(t *testing.T) {
	env := setupTestRouter(t, 60)

	rec := env.do(http.MethodPost, "/api/complaints", "application/json", `{"provider":"aol"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/complaints", "message/feedback-report", "Feedback-Type: abuse\n", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.complaints.got)
}

func TestParseFeedbackReport(t *testing.T) {
	fr := parseFeedbackReport([]byte("Feedback-Type: Abuse\nRemoval-Recipient: r@example.org\nReported-Domain: example.com\n"))
	assert.Equal(t, "r@example.org", fr.Recipient)
	assert.Equal(t, "abuse", fr.FeedbackType)
	assert.Equal(t, "example.com", fr.Provider)
}
