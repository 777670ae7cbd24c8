//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	modulePath = "github.com/dkoosis/verdict"
	binPath    = "bin/verdict"
	targetDir  = "target"
)

// Default target - build the binary
var Default = Build

// Build builds the verdict binary with version information stamped in.
func Build() error {
	date := time.Now().UTC().Format(time.RFC3339)
	ldflags := fmt.Sprintf("-s -w -X '%[1]s/internal/version.Version=%[2]s' -X '%[1]s/internal/version.CommitHash=%[3]s' -X '%[1]s/internal/version.BuildDate=%[4]s'",
		modulePath, gitVersion(), gitCommit(), date)
	return sh.RunV("go", "build", "-ldflags", ldflags, "-o", binPath, "./cmd/verdict")
}

// Clean removes build artifacts
func Clean() error {
	for _, p := range []string{"bin", targetDir} {
		if err := sh.Rm(p); err != nil {
			return err
		}
	}
	return nil
}

// QA runs formatting, vet, lint and the race-enabled test suite.
func QA() {
	mg.SerialDeps(Lint.Format, Lint.Vet, Lint.Golangci, Test.Race, Build)
}

// Lint namespace for linting commands
type Lint mg.Namespace

// Format fails when any file needs gofmt.
func (Lint) Format() error {
	out, err := sh.Output("gofmt", "-l", ".")
	if err != nil {
		return err
	}
	if out = strings.TrimSpace(out); out != "" {
		return fmt.Errorf("files need gofmt:\n%s", out)
	}
	return nil
}

// Vet runs go vet
func (Lint) Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Golangci runs golangci-lint when it is installed.
func (Lint) Golangci() error {
	err := sh.RunV("golangci-lint", "run", "--timeout=5m", "./...")
	if err != nil && sh.ExitStatus(err) == 127 {
		fmt.Println("golangci-lint not found (install: go install github.com/golangci/golangci-lint/cmd/golangci-lint@latest)")
		return nil
	}
	return err
}

// Test namespace for testing commands
type Test mg.Namespace

// All runs all tests
func (Test) All() error {
	return sh.RunV("go", "test", "./...")
}

// Race runs tests with race detector
func (Test) Race() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Coverage runs tests with coverage
func (Test) Coverage() error {
	profile := filepath.Join(targetDir, "coverage.out")
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}
	if err := sh.RunV("go", "test", "-coverprofile="+profile, "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func="+profile)
}

// Report runs the suite as go test -json and feeds it through verdict.
func (Test) Report() error {
	mg.Deps(Build)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}
	events := filepath.Join(targetDir, "gotest.json")
	f, err := os.Create(events)
	if err != nil {
		return err
	}
	defer f.Close()

	// Test failures surface in the report; only a failed build aborts here.
	if _, err := sh.Exec(nil, f, os.Stderr, "go", "test", "-json", "./..."); err != nil && sh.ExitStatus(err) != 1 {
		return err
	}
	return sh.RunV(binPath, "report", "--out", filepath.Join(targetDir, "verdict"), events)
}

func gitVersion() string {
	out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty", "--match=v*")
	if err != nil {
		return "dev"
	}
	return out
}

func gitCommit() string {
	out, err := sh.Output("git", "rev-parse", "--short", "HEAD")
	if err != nil {
		return "unknown"
	}
	return out
}
