// SPDX-License-Identifier: MPL-2.0

//go:build windows

package interpreter

import (
	"context"

	"golang.org/x/sys/windows/registry"
)

var pythonCoreKeys = []string{
	`SOFTWARE\Python\PythonCore`,
	`SOFTWARE\Wow6432Node\Python\PythonCore`,
}

// registryCandidates walks PythonCore under HKLM and HKCU, newest version first.
func registryCandidates(_ context.Context) []string {
	var out []string
	for _, root := range []registry.Key{registry.LOCAL_MACHINE, registry.CURRENT_USER} {
		for _, path := range pythonCoreKeys {
			out = append(out, readPythonCore(root, path)...)
		}
	}
	return out
}

func readPythonCore(root registry.Key, path string) []string {
	core, err := registry.OpenKey(root, path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil
	}
	defer core.Close()

	versions, err := core.ReadSubKeyNames(-1)
	if err != nil {
		return nil
	}

	var out []string
	for _, v := range sortVersionsDesc(versions) {
		k, err := registry.OpenKey(root, path+`\`+v+`\InstallPath`, registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		if exe, _, err := k.GetStringValue("ExecutablePath"); err == nil && exe != "" {
			out = append(out, exe)
		} else if dir, _, err := k.GetStringValue(""); err == nil && dir != "" {
			out = append(out, dir+`\python.exe`)
		}
		k.Close()
	}
	return out
}
