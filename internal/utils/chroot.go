/*
Copyright © 2022 SUSE LLC
Copyright © 2023 Kairos authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package utils

import (
	"context"

	"github.com/almatool/alma/internal/alma"
	"github.com/almatool/alma/pkg/runner"
)

// Chroot wraps arch-chroot rather than syscall.Chroot: the core orchestrates
// arch-chroot per the design's non-goals instead of reimplementing its
// bind-mount bookkeeping. The mount manager (C5) is responsible for the
// API binds arch-chroot itself would otherwise set up and tear down.
type Chroot struct {
	path string
	run  *runner.Runner
}

func NewChroot(path string, run *runner.Runner) *Chroot {
	return &Chroot{path: path, run: run}
}

// Run executes command inside the chroot via `arch-chroot <path> /bin/bash
// -c <command>`, returning its stdout on success and stdout followed by
// stderr on failure.
func (c *Chroot) Run(ctx context.Context, command string, env []string) (string, error) {
	argv := []string{"arch-chroot", c.path, "/bin/bash", "-c", command}
	res, err := c.run.RunChecked(ctx, argv, env, "")
	if err != nil {
		return res.Stdout + res.Stderr, alma.Step("running command in chroot", err)
	}
	return res.Stdout, nil
}

// Interactive hands the user an interactive shell inside the chroot,
// inheriting the controlling terminal, used by `alma chroot` and the
// `--interactive` post-install shell.
func (c *Chroot) Interactive(ctx context.Context, env []string) error {
	return c.run.RunInteractive(ctx, []string{"arch-chroot", c.path}, env)
}
