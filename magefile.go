//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

// Build compiles the hittune executable into ./bin.
func Build() error {
	mg.Deps(BuildHittune)
	fmt.Println("Compilation finished")
	return nil
}

func cgoCommand(args ...string) *exec.Cmd {
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

func BuildHittune() error {
	fmt.Println("Building hittune executable...")
	return cgoCommand("build", "-o", "./bin/hittune", "./hittune").Run()
}

// Tarball packs the hittune binary and a scan's FCL files into
// hitTuning.tar.gz for jobsub. FCLDIR selects the FCL directory (default fcl).
func Tarball() error {
	mg.Deps(BuildHittune)
	fclDir := os.Getenv("FCLDIR")
	if fclDir == "" {
		fclDir = "fcl"
	}
	fmt.Printf("Packing bin/hittune and %s into hitTuning.tar.gz...\n", fclDir)
	cmd := exec.Command("tar", "-czf", "hitTuning.tar.gz", "bin/hittune", "-C", fclDir, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Test runs the library tests. The HDF5 summary package needs libhdf5.
func Test() error {
	fmt.Println("Running tests...")
	return cgoCommand("test", "./pkg/...").Run()
}

// TestNoHDF5 runs the tests of the packages that build without libhdf5.
func TestNoHDF5() error {
	return cgoCommand("test", "./pkg").Run()
}
