package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestShowError(t *testing.T) {
	var buf bytes.Buffer
	orig := errorWriter
	errorWriter = &buf
	defer func() { errorWriter = orig }()

	ShowError("Failed to open camera", errors.New("device busy"), "close other video apps")

	out := buf.String()
	for _, want := range []string{"GATEKEEPER ERROR: Failed to open camera", "DETAILS: device busy", "HINT: close other video apps"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShowErrorWithoutDetails(t *testing.T) {
	var buf bytes.Buffer
	orig := errorWriter
	errorWriter = &buf
	defer func() { errorWriter = orig }()

	ShowError("Nothing to train", nil, "")

	out := buf.String()
	if strings.Contains(out, "DETAILS") || strings.Contains(out, "HINT") {
		t.Errorf("unexpected sections in output:\n%s", out)
	}
}

func TestFmtElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{30 * time.Second, "00:00:30"},
		{61*time.Minute + 5*time.Second, "01:01:05"},
		{1500 * time.Millisecond, "00:00:01"},
		{-time.Second, "00:00:00"},
	}
	for _, tt := range tests {
		if got := FmtElapsed(tt.in); got != tt.want {
			t.Errorf("FmtElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
