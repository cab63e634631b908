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

// Build compiles both executables into ./bin
func Build() error {
	mg.Deps(BuildDecoder)
	mg.Deps(BuildAcquInfo)
	fmt.Println("Compilation finished")
	return nil
}

// The HDF5 writer needs cgo, CGO_LDFLAGS and CGO_CFLAGS are passed through
// to find libhdf5.
func goCommand(args ...string) *exec.Cmd {
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

func BuildDecoder() error {
	fmt.Println("Building decoder executable...")
	return goCommand("build", "-o", "./bin/decoder", "./decoder").Run()
}

func BuildAcquInfo() error {
	fmt.Println("Building acquinfo executable...")
	return goCommand("build", "-o", "./bin/acquinfo", "./acquinfo").Run()
}

// Test runs the tests of all packages
func Test() error {
	fmt.Println("Running tests...")
	return goCommand("test", "./...").Run()
}
