package cli

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionNeedsNoConfig(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "trustscan ") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestContractCommand(t *testing.T) {
	out, err := execute(t, "contract")
	if err != nil {
		t.Fatalf("contract failed: %v", err)
	}
	if !strings.Contains(out, "0x71C7656EC7ab88b098defB751B7401B5f6d8976F") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestResetRequiresConfirmation(t *testing.T) {
	_, err := execute(t, "reset")
	if err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("reset without --yes should be refused, got %v", err)
	}
}
