package bootstrap

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
	"github.com/almatool/alma/pkg/schema"
)

// regenerateInitramfs edits mkinitcpio.conf's HOOKS= to insert "encrypt"
// before "filesystems" for encrypted roots, adds "btrfs" to BINARIES for
// btrfs roots, then runs mkinitcpio -P.
func (b *Bootstrapper) regenerateInitramfs(ctx context.Context, layout schema.StorageLayout) error {
	confPath := filepath.Join(b.RootDir, "etc", "mkinitcpio.conf")
	if err := editMkinitcpioConf(confPath, layout); err != nil {
		return alma.Step("editing mkinitcpio.conf", err)
	}
	if _, err := b.Chroot.Run(ctx, "mkinitcpio -P", nil); err != nil {
		return alma.Step("running mkinitcpio", err)
	}
	return nil
}

func editMkinitcpioConf(path string, layout schema.StorageLayout) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case layout.Encrypted && strings.HasPrefix(trimmed, "HOOKS="):
			lines[i] = insertHook(line, "encrypt", "filesystems")
		case layout.RootFS == constants.FSBtrfs && strings.HasPrefix(trimmed, "BINARIES="):
			lines[i] = appendToken(line, "btrfs")
		}
	}

	return writeLines(path, lines)
}

// insertHook inserts hook immediately before before in a HOOKS=(...) line,
// a no-op if hook is already present.
func insertHook(line, hook, before string) string {
	if strings.Contains(line, hook) {
		return line
	}
	return strings.Replace(line, before, hook+" "+before, 1)
}

func appendToken(line, token string) string {
	if strings.Contains(line, token) {
		return line
	}
	idx := strings.LastIndex(line, ")")
	if idx < 0 {
		return line
	}
	return line[:idx] + " " + token + line[idx:]
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for i, l := range lines {
		if i > 0 {
			w.WriteString("\n")
		}
		w.WriteString(l)
	}
	return w.Flush()
}
