package output

import (
	"io"
	"os"

	"github.com/logrusorgru/aurora/v3"
	"github.com/mattn/go-isatty"
	"github.com/mt-inside/http-log/pkg/bios"
	hloutput "github.com/mt-inside/http-log/pkg/output"
)

// NewStyler colours only when w is a terminal, so redirected output stays plain.
func NewStyler(w io.Writer) hloutput.TtyStyler {
	return hloutput.NewTtyStyler(aurora.NewAurora(IsTerminal(w)))
}

func NewBios(s hloutput.TtyStyler) bios.Bios {
	return bios.NewTtyBios(s)
}

func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
