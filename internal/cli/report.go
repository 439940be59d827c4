package cli

import (
	"io"

	"github.com/mrz1836/cortex/internal/tui"
)

// PrintError writes err for the operator, with the suggested fix when one is known.
func PrintError(w io.Writer, err error) {
	tui.NewTTYOutput(w).Error(err)
}
