package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
)

// configureSystem sets the enabled locales, hostname and loopback
// /etc/hosts entries. It does not create the /etc/localtime timezone
// symlink. When interactive, it hands the user a shell inside the chroot
// for setting the root password rather than piping a password through the
// command runner.
func (b *Bootstrapper) configureSystem(ctx context.Context, opts Options) error {
	if err := b.writeLocaleGen(opts.Locales); err != nil {
		return alma.Step("writing locale.gen", err)
	}
	if _, err := b.Chroot.Run(ctx, "locale-gen", nil); err != nil {
		return alma.Step("running locale-gen", err)
	}
	if err := b.writeFile("etc/locale.conf", "LANG=en_US.UTF-8\n"); err != nil {
		return alma.Step("writing locale.conf", err)
	}

	hostname := opts.Hostname
	if hostname == "" {
		hostname = "alma"
	}
	if err := b.writeFile("etc/hostname", hostname+"\n"); err != nil {
		return alma.Step("writing hostname", err)
	}
	if err := b.writeFile("etc/hosts", hostsFile(hostname)); err != nil {
		return alma.Step("writing hosts", err)
	}

	if opts.Interactive {
		if err := b.Chroot.Interactive(ctx, nil); err != nil {
			return alma.Step("setting root password", err)
		}
	}

	return nil
}

func hostsFile(hostname string) string {
	return fmt.Sprintf(
		"127.0.0.1\tlocalhost\n::1\t\tlocalhost\n127.0.1.1\t%s.localdomain\t%s\n",
		hostname, hostname,
	)
}

// writeLocaleGen enables DefaultLocale plus any additional locales
// requested by replacing /etc/locale.gen with exactly those lines, one per
// locale.
func (b *Bootstrapper) writeLocaleGen(extra []string) error {
	locales := append([]string{constants.DefaultLocale}, extra...)
	var sb strings.Builder
	for _, l := range locales {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return b.writeFile("etc/locale.gen", sb.String())
}

func (b *Bootstrapper) writeFile(rel, content string) error {
	full := filepath.Join(b.RootDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0644)
}
