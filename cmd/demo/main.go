// Command demo runs a colorized, self-contained walk through cardshell's
// fault handling. It shells out to the cardshell binary for every step.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dotcommander/cardshell/internal/demo"
)

func main() {
	var binPath string
	var continueOnError bool
	var fast bool
	flag.StringVar(&binPath, "bin", "", "Path to cardshell binary (default: builds from source)")
	flag.BoolVar(&continueOnError, "continue-on-error", false, "Continue after step failures")
	flag.BoolVar(&fast, "fast", false, "Skip 2s pause after each successful step")
	flag.Parse()

	workDir, err := os.MkdirTemp("", "cardshell-demo-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create work dir: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	if binPath == "" {
		binPath = filepath.Join(workDir, "cardshell")
		fmt.Fprintln(os.Stderr, "Building cardshell binary...")
		buildCmd := exec.Command("go", "build", "-o", binPath, "./cmd/cardshell")
		buildCmd.Stdout = os.Stderr
		buildCmd.Stderr = os.Stderr
		if err := buildCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build cardshell: %v\n", err)
			os.Exit(1)
		}
	}

	r := demo.NewRunner(binPath, workDir, os.Stdout, fast)
	passed, failed := r.RunAll(continueOnError)

	_, _ = fmt.Fprintf(os.Stdout, "\n%d passed, %d failed, %d total\n", passed, failed, passed+failed)
	if failed > 0 {
		os.Exit(1)
	}
}
