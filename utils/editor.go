package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meysamhadeli/docai/code_analyzer/models"
	"github.com/pterm/pterm"
)

// Editor lets the user revise a drafted doc comment before it is written.
// Returning text unchanged keeps the draft.
type Editor interface {
	Edit(symbol models.ApiSymbol, text string) (string, error)
}

func editTitle(symbol models.ApiSymbol) string {
	return fmt.Sprintf("%s (%s:%d)", symbol.QualifiedName, symbol.RelativePath, symbol.Line)
}

// TerminalEditor opens pterm's multi line input prefilled with the draft.
type TerminalEditor struct{}

func (TerminalEditor) Edit(symbol models.ApiSymbol, text string) (string, error) {
	edited, err := pterm.DefaultInteractiveTextInput.WithMultiLine().WithDefaultValue(text).Show(editTitle(symbol))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(edited) == "" {
		return text, nil
	}
	return edited, nil
}

// LineEditor shows the draft and reads a one line replacement; an empty line keeps it.
type LineEditor struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewLineEditor(in io.Reader, out io.Writer) *LineEditor {
	return &LineEditor{reader: bufio.NewReader(in), out: out}
}

func (e *LineEditor) Edit(symbol models.ApiSymbol, text string) (string, error) {
	fmt.Fprintf(e.out, "%s\n%s\n", editTitle(symbol), text)
	answer, err := InputPrompt(e.reader, e.out, "Replacement (empty keeps it):")
	if err != nil {
		return "", err
	}
	if answer == "" {
		return text, nil
	}
	return answer, nil
}

// NewEditor picks an editor for the current process.
func NewEditor(in *os.File, out io.Writer) Editor {
	if IsTerminal(in) {
		return TerminalEditor{}
	}
	return NewLineEditor(in, out)
}
