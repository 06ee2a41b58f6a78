package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/probe"
	"github.com/almatool/alma/pkg/resource"
	"github.com/almatool/alma/pkg/runner"
	"github.com/gofrs/uuid"
	"golang.org/x/term"
)

// PromptPassphrase reads a passphrase twice from the controlling TTY and
// confirms they match. Encryption always requires a human: `alma create`
// rejects --encrypt together with --noconfirm at the argument-parsing
// layer. `alma install` takes encryption from the manifest and reaches
// this prompt even when --noconfirm is set.
func PromptPassphrase() (string, error) {
	fd := int(os.Stdin.Fd())
	fmt.Print("Encryption passphrase: ")
	p1, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", &alma.LuksFailed{Op: "passphrase prompt", Err: err}
	}
	fmt.Print("Confirm passphrase: ")
	p2, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", &alma.LuksFailed{Op: "passphrase prompt", Err: err}
	}
	if string(p1) != string(p2) {
		return "", &alma.LuksFailed{Op: "passphrase prompt", Err: fmt.Errorf("passphrases did not match")}
	}
	return string(p1), nil
}

// PromptExistingPassphrase reads a passphrase once from the controlling
// TTY, for unlocking an already-formatted LUKS container (chroot, install)
// where there is nothing to confirm against.
func PromptExistingPassphrase() (string, error) {
	fd := int(os.Stdin.Fd())
	fmt.Print("Encryption passphrase: ")
	p, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", &alma.LuksFailed{Op: "passphrase prompt", Err: err}
	}
	return string(p), nil
}

// LuksOpen opens an already-formatted LUKS container as /dev/mapper/<name>
// without reformatting it, pushing close onto the stack. Used by the
// chroot driver re-entering an existing medium.
func LuksOpen(ctx context.Context, run *runner.Runner, stack *resource.Stack, partition, passphrase, name string) (string, error) {
	if _, err := run.RunChecked(ctx, []string{"cryptsetup", "open", partition, name}, nil, passphrase+"\n"); err != nil {
		return "", &alma.LuksFailed{Op: "open", Err: err}
	}
	stack.Push("luks:"+name, func() error {
		_, err := run.RunChecked(context.Background(), []string{"cryptsetup", "close", name}, nil, "")
		return err
	})
	return "/dev/mapper/" + name, nil
}

// LuksFormat formats partition as a LUKS2 container using passphrase
// supplied over a pipe (never via argv), and opens it as
// /dev/mapper/<name>, pushing close onto the stack.
func LuksFormat(ctx context.Context, run *runner.Runner, prb *probe.Probe, stack *resource.Stack, partition, passphrase, name string) (mapperPath, luksUUID string, err error) {
	if _, err := run.RunChecked(ctx, []string{"cryptsetup", "luksFormat", "--type", "luks2", "-q", partition}, nil, passphrase+"\n"); err != nil {
		return "", "", &alma.LuksFailed{Op: "luksFormat", Err: err}
	}

	if _, err := run.RunChecked(ctx, []string{"cryptsetup", "open", partition, name}, nil, passphrase+"\n"); err != nil {
		return "", "", &alma.LuksFailed{Op: "open", Err: err}
	}
	stack.Push("luks:"+name, func() error {
		_, err := run.RunChecked(context.Background(), []string{"cryptsetup", "close", name}, nil, "")
		return err
	})

	raw, err := prb.BlkidUUID(ctx, partition)
	if err != nil {
		return "", "", &alma.LuksFailed{Op: "reading LUKS UUID", Err: err}
	}
	parsed, err := uuid.FromString(raw)
	if err != nil {
		return "", "", &alma.LuksFailed{Op: "parsing LUKS UUID", Err: fmt.Errorf("blkid reported %q: %w", raw, err)}
	}

	return "/dev/mapper/" + name, parsed.String(), nil
}
