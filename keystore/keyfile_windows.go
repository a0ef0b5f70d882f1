//go:build windows

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
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// envAllowInsecureKeyPerms skips the DACL check for operators who manage
// key file ACLs themselves
const envAllowInsecureKeyPerms = "PGF_ALLOW_INSECURE_KEY_PERMS"

// broadTrustees are groups that must never be granted access to a signing
// key, keyed by SDDL alias and by full SID
var broadTrustees = map[string]string{
	"WD":           "Everyone",
	"S-1-1-0":      "Everyone",
	"BU":           "BUILTIN\\Users",
	"S-1-5-32-545": "BUILTIN\\Users",
	"AU":           "Authenticated Users",
	"S-1-5-11":     "Authenticated Users",
}

// checkOpenFilePermissions reads the DACL by path. NTFS will not replace a
// file that is held open, so the path still names the handle we read from.
func checkOpenFilePermissions(f *os.File) error {
	if strings.EqualFold(os.Getenv(envAllowInsecureKeyPerms), "true") {
		slog.Warn(
			"skipping key file ACL check",
			"component", "keystore",
			"path", f.Name(),
			"env_var", envAllowInsecureKeyPerms,
		)
		return nil
	}
	return checkFilePermissions(f.Name())
}

func checkFilePermissions(path string) error {
	// The descriptor is LocalAlloc'd and is not freed here, since that
	// needs unsafe (go.dev/issue/73199). Keys are loaded once at startup.
	sd, err := windows.GetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
	)
	if err != nil {
		return fmt.Errorf("failed to read ACL of key file %q: %w", path, err)
	}
	return checkSDDL(path, sd.String())
}

// checkSDDL rejects a descriptor that has no DACL or that allows any of the
// broad trustees
func checkSDDL(path, sddl string) error {
	trustees, ok := allowedTrustees(sddl)
	if !ok {
		return fmt.Errorf(
			"key file %q has no DACL and is open to everyone: %w",
			path,
			ErrInsecureFileMode,
		)
	}
	for _, trustee := range trustees {
		if name, broad := broadTrustees[trustee]; broad {
			return fmt.Errorf(
				"key file %q grants access to %s: %w",
				path,
				name,
				ErrInsecureFileMode,
			)
		}
	}
	return nil
}

// allowedTrustees lists the trustee of every access-allowed ACE in the
// DACL section of sddl. It reports false when there is no DACL.
func allowedTrustees(sddl string) ([]string, bool) {
	_, dacl, found := strings.Cut(sddl, "D:")
	if !found {
		return nil, false
	}
	dacl, _, _ = strings.Cut(dacl, "S:")
	var ret []string
	for {
		_, rest, open := strings.Cut(dacl, "(")
		if !open {
			break
		}
		ace, tail, closed := strings.Cut(rest, ")")
		if !closed {
			break
		}
		dacl = tail
		// type;flags;rights;object;inherit_object;trustee
		fields := strings.Split(ace, ";")
		if len(fields) < 6 || fields[0] != "A" {
			continue
		}
		ret = append(ret, fields[5])
	}
	return ret, true
}
