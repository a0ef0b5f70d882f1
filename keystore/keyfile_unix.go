//go:build !windows

// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package keystore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// checkOpenFilePermissions checks the open handle so the file cannot be
// swapped between the check and the read. A signing key must be owned by
// the node's user (or root) and grant nothing to group or other.
func checkOpenFilePermissions(f *os.File) error {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil { //nolint:gosec
		return fmt.Errorf("failed to stat key file %q: %w", f.Name(), err)
	}
	perm := uint32(st.Mode) & 0o777 //nolint:unconvert
	if perm&0o077 != 0 {
		return fmt.Errorf(
			"key file %q has mode %04o, group/other access not permitted: %w",
			f.Name(),
			perm,
			ErrInsecureFileMode,
		)
	}
	if owner := uint32(os.Geteuid()); st.Uid != owner && st.Uid != 0 { //nolint:gosec
		return fmt.Errorf(
			"key file %q is owned by uid %d, not the node user %d: %w",
			f.Name(),
			st.Uid,
			owner,
			ErrInsecureFileMode,
		)
	}
	return nil
}
