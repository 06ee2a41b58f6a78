package bootstrap

import (
	"context"
	"fmt"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/constants"
)

// installAURPackages builds the chosen AUR helper from its PKGBUILD as a
// non-root builder user, installs the helper, then uses it to install
// aggregated_aur_packages with --noconfirm. Grounded on the original
// implementation's aur.rs, which creates a throwaway builder account for
// the same reason makepkg refuses to run as root.
func (b *Bootstrapper) installAURPackages(ctx context.Context, opts Options, aurPackages []string) error {
	helper := opts.AURHelper
	if helper == "" {
		helper = constants.AURHelperParu
	}

	if err := b.createBuilderUser(ctx); err != nil {
		return alma.Step("creating AUR builder user", err)
	}
	if err := b.buildAndInstallHelper(ctx, helper); err != nil {
		return alma.Step("building AUR helper "+helper, err)
	}
	if err := b.installViaHelper(ctx, helper, aurPackages); err != nil {
		return alma.Step("installing AUR packages", err)
	}
	return nil
}

func (b *Bootstrapper) createBuilderUser(ctx context.Context) error {
	cmd := fmt.Sprintf(
		"id -u %s >/dev/null 2>&1 || useradd -m -G wheel %s && "+
			"echo '%s ALL=(ALL) NOPASSWD: ALL' > /etc/sudoers.d/%s",
		constants.AURBuilderUser, constants.AURBuilderUser,
		constants.AURBuilderUser, constants.AURBuilderUser,
	)
	_, err := b.Chroot.Run(ctx, cmd, nil)
	return err
}

func (b *Bootstrapper) buildAndInstallHelper(ctx context.Context, helper string) error {
	buildDir := fmt.Sprintf("/tmp/aur-%s", helper)
	cmd := fmt.Sprintf(
		"rm -rf %[1]s && git clone --depth=1 https://aur.archlinux.org/%[2]s.git %[1]s && "+
			"chown -R %[3]s:%[3]s %[1]s && "+
			"su - %[3]s -c 'cd %[1]s && makepkg -si --noconfirm'",
		buildDir, helper, constants.AURBuilderUser,
	)
	_, err := b.Chroot.Run(ctx, cmd, nil)
	return err
}

func (b *Bootstrapper) installViaHelper(ctx context.Context, helper string, packages []string) error {
	if len(packages) == 0 {
		return nil
	}
	pkgList := joinArgs(packages)
	cmd := fmt.Sprintf(
		"su - %s -c '%s -S --noconfirm %s'",
		constants.AURBuilderUser, helper, pkgList,
	)
	_, err := b.Chroot.Run(ctx, cmd, nil)
	return err
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}
