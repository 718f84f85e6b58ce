package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesJSONWithRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, true)

	l.Log(INFO, "send accepted", "to", "john.doe@example.com", "note", "cc alice@example.org", "count", 3)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "send accepted", entry["msg"])
	assert.Equal(t, "jo***@example.com", entry["to"])
	assert.Equal(t, "cc al***@example.org", entry["note"])
	assert.Equal(t, "3", entry["count"])
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN, false)

	l.Log(INFO, "dropped")
	assert.Zero(t, buf.Len())

	l.Log(ERROR, "kept", "email", "john.doe@example.com")
	assert.Contains(t, buf.String(), "john.doe@example.com")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "ne***@example.com", RedactEmail("News Team <news@Example.COM>"))
	assert.Equal(t, "***@***", RedactEmail("not-an-address"))
	assert.Equal(t, "***@***", RedactEmail("a@b@c"))
}

func TestRedactIP(t *testing.T) {
	assert.Equal(t, "198.51.100.0", RedactIP("198.51.100.7"))
	assert.Equal(t, "2001:db8:1::", RedactIP("2001:db8:1:2::9"))
	assert.Equal(t, "***", RedactIP("unknown"))
}

func TestLogger_RedactsGatewayFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, true)

	l.Log(INFO, "compliance check",
		"from_email", "news@example.com",
		"to_email", "User <john.doe@example.org>",
		"client_ip", "198.51.100.7",
		"sending_ip", "203.0.113.10",
		"token", "a1b2c3d4e5f6",
	)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ne***@example.com", entry["from_email"])
	assert.Equal(t, "jo***@example.org", entry["to_email"])
	assert.Equal(t, "198.51.100.0", entry["client_ip"])
	assert.Equal(t, "203.0.113.10", entry["sending_ip"])
	assert.Equal(t, "a1b2***", entry["token"])
}
