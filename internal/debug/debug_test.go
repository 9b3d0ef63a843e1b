package debug

import (
	"bytes"
	"os"
	"testing"
)

func TestLogfGatedByVerbose(t *testing.T) {
	var buf bytes.Buffer
	logOut = &buf
	wasEnv := envEnabled
	envEnabled = false
	t.Cleanup(func() {
		logOut = os.Stderr
		envEnabled = wasEnv
		SetVerbose(false)
	})

	SetVerbose(false)
	Logf("hidden %d\n", 1)
	if buf.Len() != 0 {
		t.Errorf("Logf wrote without verbose: %q", buf.String())
	}

	SetVerbose(true)
	Logf("shown %d\n", 2)
	if buf.String() != "shown 2\n" {
		t.Errorf("Logf output = %q", buf.String())
	}
}

func TestLogfEnabledByEnv(t *testing.T) {
	var buf bytes.Buffer
	logOut = &buf
	wasEnv := envEnabled
	envEnabled = true
	t.Cleanup(func() {
		logOut = os.Stderr
		envEnabled = wasEnv
		SetVerbose(false)
	})

	SetVerbose(false)
	Logf("via env\n")
	if buf.String() != "via env\n" {
		t.Errorf("Logf output = %q", buf.String())
	}
}

func TestPrintNormalGatedByQuiet(t *testing.T) {
	var buf bytes.Buffer
	infoOut = &buf
	t.Cleanup(func() {
		infoOut = os.Stdout
		SetQuiet(false)
	})

	SetQuiet(false)
	PrintNormal("progress\n")
	if buf.String() != "progress\n" {
		t.Errorf("PrintNormal output = %q", buf.String())
	}

	buf.Reset()
	SetQuiet(true)
	PrintNormal("suppressed\n")
	if buf.Len() != 0 {
		t.Errorf("PrintNormal wrote in quiet mode: %q", buf.String())
	}
}
