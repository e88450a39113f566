package main

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/pkg/config"
)

// executeCommand runs the root command with args and returns its stdout and stderr
func executeCommand(t *testing.T, args ...string) (stdout string, stderr string, err error) {
	t.Helper()

	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	cmd := newRootCmd()
	outBuf, errBuf := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// withAdapters replaces the adapter enumeration for the duration of the test
func withAdapters(t *testing.T, adapters ...device.Adapter) {
	t.Helper()
	original := adapterSource
	adapterSource = func(*logrus.Logger, *config.Config) ([]device.Adapter, error) {
		return adapters, nil
	}
	t.Cleanup(func() { adapterSource = original })
}
