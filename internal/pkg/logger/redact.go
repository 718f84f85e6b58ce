package logger

import (
	"net"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// recipientKeys name fields that carry a single address.
var recipientKeys = map[string]bool{
	"email": true, "recipient": true, "to": true, "from": true, "sender": true,
	"to_email": true, "from_email": true, "reported_email": true,
}

// clientIPKeys name fields that carry an API caller's address. The sending IP
// is ours and is left alone.
var clientIPKeys = map[string]bool{"client_ip": true, "remote_addr": true, "ip_address": true}

// tokenKeys name fields that carry unsubscribe tokens.
var tokenKeys = map[string]bool{"token": true, "unsubscribe_token": true}

// RedactEmail masks the local part of an address.
// "john.doe@example.com" → "jo***@example.com", "ab@example.com" → "***@example.com".
// A display-name form keeps only the masked address.
func RedactEmail(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.LastIndexByte(email, '<'); i >= 0 && strings.HasSuffix(email, ">") {
		email = email[i+1 : len(email)-1]
	}
	local, host, ok := strings.Cut(email, "@")
	if !ok || host == "" || strings.Contains(host, "@") {
		return "***@***"
	}
	host = strings.ToLower(host)
	if len(local) > 2 {
		return local[:2] + "***@" + host
	}
	return "***@" + host
}

// RedactIP zeroes the host part of an address: the last octet for IPv4 and
// everything past the /48 for IPv6. Unparseable input is fully masked.
func RedactIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "***"
	}
	if v4 := parsed.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}

// RedactToken keeps the first four characters of a token.
func RedactToken(tok string) string {
	if len(tok) <= 4 {
		return "***"
	}
	return tok[:4] + "***"
}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	switch {
	case clientIPKeys[key]:
		return RedactIP(val)
	case tokenKeys[key]:
		return RedactToken(val)
	case recipientKeys[key] || strings.HasSuffix(key, "_email"):
		bare := !strings.ContainsAny(val, " ,") || strings.HasSuffix(val, ">")
		if strings.Count(val, "@") == 1 && bare {
			return RedactEmail(val)
		}
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
