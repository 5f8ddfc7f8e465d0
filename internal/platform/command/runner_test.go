package command

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	requireSh(t)
	r := NewExecRunner(time.Minute)

	res, err := r.Run(context.Background(), "sh", "-c", "echo hello; echo oops 1>&2")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit = %d", res.ExitCode)
	}
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	requireSh(t)
	r := NewExecRunner(0)

	res, err := r.Run(context.Background(), "sh", "-c", "exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit = %d, want 3", res.ExitCode)
	}
}

func TestExecRunnerKillsOnTimeout(t *testing.T) {
	requireSh(t)
	r := NewExecRunner(100 * time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), "sh", "-c", "sleep 10")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("process was not killed promptly")
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := NewExecRunner(0)
	res, err := r.Run(context.Background(), "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit = %d, want -1", res.ExitCode)
	}
}
