package dnsx

import (
	"context"
	"slices"
	"strings"

	"github.com/mjl-/adns"
)

// MockResolver is a TXTResolver for tests. TXT maps lower-case names without
// trailing dot to records. Names listed in Fail return a temporary error.
type MockResolver struct {
	TXT  map[string][]string
	Fail []string
}

var _ TXTResolver = MockResolver{}

// LookupTXT implements TXTResolver.
func (r MockResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if slices.Contains(r.Fail, name) {
		return nil, &adns.DNSError{
			Err:         "temporary failure",
			Name:        name,
			Server:      "mock",
			IsTemporary: true,
		}
	}
	return r.TXT[name], nil
}
