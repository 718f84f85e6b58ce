// Package randstr generates random tokens from crypto/rand.
package randstr

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Alphanumeric returns n random characters from [A-Za-z0-9].
func Alphanumeric(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("randstr: crypto/rand unavailable: " + err.Error())
		}
		b[i] = alphanumeric[v.Int64()]
	}
	return string(b)
}

// Hex returns 2*n hex characters from n random bytes.
func Hex(n int) string {
	b := make([]byte, n)
	rand.Read(b)
	return hex.EncodeToString(b)
}
