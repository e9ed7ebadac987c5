package ipcbus

import "os/exec"

// killByName asks the OS to terminate every process matching name.
// pkill is the simplest portable-enough primitive available without a
// dedicated process-table library in the pack; failures (no matching
// process, missing permission) are non-fatal per spec.md §7.3.
func killByName(name string) error {
	return exec.Command("pkill", "-x", name).Run()
}
