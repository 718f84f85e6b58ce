package mailbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provisioner creates the on-disk mail store for a mailbox.
type Provisioner interface {
	Provision(email string) (string, error)
}

// MaildirProvisioner lays out {root}/{domain}/{local}/{cur,new,tmp}.
type MaildirProvisioner struct {
	Root string
}

// Provision creates the maildir for email if missing and returns its path.
func (p MaildirProvisioner) Provision(email string) (string, error) {
	local, domainName, ok := strings.Cut(email, "@")
	if !ok || local == "" || domainName == "" {
		return "", fmt.Errorf("maildir: invalid address %q", email)
	}
	if strings.ContainsAny(local, `/\`) || strings.Contains(local, "..") || strings.ContainsAny(domainName, `/\`) {
		return "", fmt.Errorf("maildir: unsafe address %q", email)
	}

	domainDir := filepath.Join(p.Root, domainName)
	path := filepath.Join(domainDir, local)
	for _, sub := range []string{"cur", "new", "tmp"} {
		if err := os.MkdirAll(filepath.Join(path, sub), 0o770); err != nil {
			return "", fmt.Errorf("maildir: %w", err)
		}
	}
	if err := os.Chmod(domainDir, 0o770); err != nil {
		return "", fmt.Errorf("maildir: %w", err)
	}
	return path, nil
}
