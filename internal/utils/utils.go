package utils

import (
	"fmt"
	"io"
	"os"
	"time"
)

// errorWriter is where error reports go. Tests swap it out.
var errorWriter io.Writer = os.Stderr

// ShowError prints a formatted error box. Commands return the error to cobra
// afterwards, which sets the exit status.
func ShowError(context string, err error, hint string) {
	fmt.Fprintf(errorWriter, "\n---------------------------------------------------------\n")
	fmt.Fprintf(errorWriter, "🚨 GATEKEEPER ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(errorWriter, "DETAILS: %v\n", err)
	}
	if hint != "" {
		fmt.Fprintf(errorWriter, "\nHINT: %s\n", hint)
	}
	fmt.Fprintf(errorWriter, "---------------------------------------------------------\n")
}

// FmtElapsed renders a duration as HH:MM:SS.
func FmtElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
