package combilog

import (
	"bytes"
	"strings"
	"testing"
)

func TestDebugfOnlyLogsWhenVerbose(t *testing.T) {
	var out, errOut bytes.Buffer

	quiet := New(&out, &errOut, false)
	quiet.Debugf("hidden %d", 1)
	if out.Len() != 0 {
		t.Errorf("expected no output from Debugf when Verbose=false, got %q", out.String())
	}

	out.Reset()
	verbose := New(&out, &errOut, true)
	verbose.Debugf("shown %d", 1)
	if !strings.Contains(out.String(), "shown 1") {
		t.Errorf("expected Debugf output when Verbose=true, got %q", out.String())
	}
}

func TestWarnfAndErrorfWriteToErr(t *testing.T) {
	var out, errOut bytes.Buffer
	l := New(&out, &errOut, false)

	l.Warnf("something odd")
	l.Errorf("something broke")

	if !strings.Contains(errOut.String(), "warning: something odd") {
		t.Errorf("expected warning prefix in err output, got %q", errOut.String())
	}
	if !strings.Contains(errOut.String(), "error: something broke") {
		t.Errorf("expected error prefix in err output, got %q", errOut.String())
	}
	if out.Len() != 0 {
		t.Errorf("expected nothing written to out, got %q", out.String())
	}
}

func TestInfofWritesToOut(t *testing.T) {
	var out, errOut bytes.Buffer
	l := New(&out, &errOut, false)
	l.Infof("hello %s", "world")
	if !strings.Contains(out.String(), "hello world") {
		t.Errorf("expected Infof output, got %q", out.String())
	}
}
