// Package cmd wires the urfave/cli command table for create, install,
// chroot, and qemu onto pkg/driver, translating parsed flags into the
// option structs each driver function expects.
package cmd

import (
	"fmt"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/internal/utils"
	"github.com/almatool/alma/pkg/driver"
	"github.com/urfave/cli/v2"
)

func runtimeFromContext(c *cli.Context) (*driver.Runtime, alma.Context) {
	actx := alma.Context{
		PacmanConf: c.String("pacman-conf"),
		DryRun:     c.Bool("dry-run"),
		Verbose:    c.Bool("verbose"),
		NoConfirm:  c.Bool("noconfirm"),
	}
	log := utils.NewLogger(actx.Verbose)
	return driver.NewRuntime(actx, log), actx
}

var Commands = []*cli.Command{
	{
		Name:      "create",
		Usage:     "provision a new ALMA installation",
		UsageText: "alma create [options] <disk|--root-partition|--image>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root-partition"},
			&cli.StringFlag{Name: "boot-partition"},
			&cli.StringFlag{Name: "image"},
			&cli.StringFlag{Name: "image-size", Value: "4GiB"},
			&cli.BoolFlag{Name: "overwrite"},
			&cli.BoolFlag{Name: "allow-non-removable"},
			&cli.StringFlag{Name: "filesystem", Value: "ext4"},
			&cli.BoolFlag{Name: "encrypt", Aliases: []string{"e"}},
			&cli.IntFlag{Name: "boot-size-mib"},
			&cli.StringFlag{Name: "pacman-conf"},
			&cli.StringSliceFlag{Name: "extra-packages"},
			&cli.StringFlag{Name: "aur-helper", Value: "paru"},
			&cli.StringSliceFlag{Name: "presets"},
			&cli.BoolFlag{Name: "interactive"},
			&cli.StringFlag{Name: "hostname", Value: "alma"},
			&cli.StringSliceFlag{Name: "locales"},
			&cli.StringFlag{Name: "system", Value: "alma"},
			&cli.BoolFlag{Name: "dry-run", EnvVars: []string{"ALMA_DRY_RUN"}},
			&cli.BoolFlag{Name: "noconfirm"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("noconfirm") && c.Bool("encrypt") {
				return fmt.Errorf("--noconfirm is not supported together with --encrypt: encryption always requires a human at the passphrase prompt")
			}

			rt, _ := runtimeFromContext(c)
			opts := driver.CreateOptions{
				RootPartition:     c.String("root-partition"),
				BootPartition:     c.String("boot-partition"),
				ImagePath:         c.String("image"),
				ImageSize:         c.String("image-size"),
				Overwrite:         c.Bool("overwrite"),
				AllowNonRemovable: c.Bool("allow-non-removable"),
				Filesystem:        c.String("filesystem"),
				Encrypted:         c.Bool("encrypt"),
				BootSizeMiB:       c.Int("boot-size-mib"),
				PacmanConf:        c.String("pacman-conf"),
				ExtraPackages:     c.StringSlice("extra-packages"),
				AURHelper:         c.String("aur-helper"),
				PresetSources:     c.StringSlice("presets"),
				Interactive:       c.Bool("interactive"),
				Hostname:          c.String("hostname"),
				Locales:           c.StringSlice("locales"),
				System:            c.String("system"),
			}
			if opts.RootPartition == "" && opts.ImagePath == "" && c.NArg() > 0 {
				opts.DiskPath = c.Args().First()
			}
			return driver.Create(c.Context, rt, opts)
		},
	},
	{
		Name:      "install",
		Usage:     "replay the running system's manifest onto a new target",
		UsageText: "alma install [options] <disk|--root-partition|--image>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root-partition"},
			&cli.StringFlag{Name: "boot-partition"},
			&cli.StringFlag{Name: "image"},
			&cli.StringFlag{Name: "image-size", Value: "4GiB"},
			&cli.BoolFlag{Name: "overwrite"},
			&cli.BoolFlag{Name: "allow-non-removable"},
			&cli.BoolFlag{Name: "copy-home"},
			&cli.BoolFlag{Name: "copy-network"},
			&cli.BoolFlag{Name: "dry-run", EnvVars: []string{"ALMA_DRY_RUN"}},
			&cli.BoolFlag{Name: "noconfirm"},
		},
		Action: func(c *cli.Context) error {
			rt, _ := runtimeFromContext(c)
			base := driver.CreateOptions{
				RootPartition:     c.String("root-partition"),
				BootPartition:     c.String("boot-partition"),
				ImagePath:         c.String("image"),
				ImageSize:         c.String("image-size"),
				Overwrite:         c.Bool("overwrite"),
				AllowNonRemovable: c.Bool("allow-non-removable"),
			}
			if base.RootPartition == "" && base.ImagePath == "" && c.NArg() > 0 {
				base.DiskPath = c.Args().First()
			}
			opts := driver.InstallOptions{
				CreateOptions: base,
				CopyHome:      c.Bool("copy-home"),
				CopyNetwork:   c.Bool("copy-network"),
			}
			return driver.Install(c.Context, rt, opts)
		},
	},
	{
		Name:      "chroot",
		Usage:     "enter an existing ALMA medium",
		UsageText: "alma chroot [options] <disk|--root-partition>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root-partition"},
			&cli.StringFlag{Name: "boot-partition"},
			&cli.BoolFlag{Name: "dry-run", EnvVars: []string{"ALMA_DRY_RUN"}},
		},
		Action: func(c *cli.Context) error {
			rt, _ := runtimeFromContext(c)
			opts := driver.ChrootOptions{
				RootPartition: c.String("root-partition"),
				BootPartition: c.String("boot-partition"),
			}
			if opts.RootPartition == "" && c.NArg() > 0 {
				opts.DiskPath = c.Args().First()
			}
			return driver.Chroot(c.Context, rt, opts)
		},
	},
	{
		Name:      "qemu",
		Usage:     "boot a disk or image under QEMU/OVMF",
		UsageText: "alma qemu [options] <disk-or-image>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "memory-mib"},
			&cli.StringFlag{Name: "ovmf-code", Value: "/usr/share/edk2/x64/OVMF_CODE.fd"},
			&cli.StringFlag{Name: "ovmf-vars", Value: "/usr/share/edk2/x64/OVMF_VARS.fd"},
			&cli.BoolFlag{Name: "dry-run", EnvVars: []string{"ALMA_DRY_RUN"}},
		},
		Action: func(c *cli.Context) error {
			rt, _ := runtimeFromContext(c)
			opts := driver.QemuOptions{
				MemoryMiB: c.Int("memory-mib"),
				OVMFCode:  c.String("ovmf-code"),
				OVMFVars:  c.String("ovmf-vars"),
			}
			if c.NArg() > 0 {
				opts.DiskOrImage = c.Args().First()
			}
			return driver.Qemu(c.Context, rt, opts)
		},
	},
}
