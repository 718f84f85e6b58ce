package dkim

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Tables locates the OpenDKIM configuration and key store.
type Tables struct {
	KeyPath       string
	KeyTable      string
	SigningTable  string
	TrustedHosts  string
	ReloadCommand string
}

// WriteKeys stores the key pair under {KeyPath}/{domain}/{selector}.private
// and .txt and returns the private key path.
func (t Tables) WriteKeys(domainName, selector string, pair *KeyPair) (string, error) {
	dir := filepath.Join(t.KeyPath, domainName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("dkim: create key dir: %w", err)
	}
	privPath := filepath.Join(dir, selector+".private")
	if err := os.WriteFile(privPath, []byte(pair.PrivatePEM), 0o600); err != nil {
		return "", fmt.Errorf("dkim: write private key: %w", err)
	}
	pubPath := filepath.Join(dir, selector+".txt")
	if err := os.WriteFile(pubPath, []byte(pair.PublicPEM), 0o644); err != nil {
		return "", fmt.Errorf("dkim: write public key: %w", err)
	}
	return privPath, nil
}

// Update replaces the domain's entries in the key and signing tables and
// adds it to the trusted hosts.
func (t Tables) Update(domainName, selector, privPath string) error {
	keyID := RecordName(selector, domainName)

	err := rewriteTable(t.KeyTable, "", func(line string) bool {
		return strings.Contains(line, keyID)
	}, fmt.Sprintf("%s %s:%s:%s", keyID, domainName, selector, privPath))
	if err != nil {
		return fmt.Errorf("dkim: key table: %w", err)
	}

	err = rewriteTable(t.SigningTable, "", func(line string) bool {
		return strings.Contains(line, "@"+domainName+" ")
	}, fmt.Sprintf("*@%s %s", domainName, keyID))
	if err != nil {
		return fmt.Errorf("dkim: signing table: %w", err)
	}

	err = rewriteTable(t.TrustedHosts, "127.0.0.1\nlocalhost\n", func(line string) bool {
		return strings.TrimSpace(line) == domainName
	}, domainName)
	if err != nil {
		return fmt.Errorf("dkim: trusted hosts: %w", err)
	}
	return nil
}

// rewriteTable drops lines matching stale, appends entry and writes the file
// back atomically. A missing file starts from initial.
func rewriteTable(path, initial string, stale func(string) bool, entry string) error {
	content := initial
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		content = string(data)
	case !os.IsNotExist(err):
		return err
	}

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if line == "" || stale(line) {
			continue
		}
		lines = append(lines, line)
	}
	lines = append(lines, entry)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Reload runs the configured reload command through the shell.
func (t Tables) Reload(ctx context.Context) error {
	if t.ReloadCommand == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "sh", "-c", t.ReloadCommand).CombinedOutput()
	if err != nil {
		return fmt.Errorf("dkim: reload: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
