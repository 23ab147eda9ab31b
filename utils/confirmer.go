package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// Confirmer asks the user to approve mutations.
type Confirmer interface {
	ConfirmBatchWrite(changeCount, fileCount int) (bool, error)
	ConfirmRollback(fileCount int, backupPath string) (bool, error)
}

func batchWriteQuestion(changeCount, fileCount int) string {
	return fmt.Sprintf("Write %d doc comment(s) to %d file(s)?", changeCount, fileCount)
}

func rollbackQuestion(fileCount int, backupPath string) string {
	return fmt.Sprintf("Writing failed. Restore %d file(s) from %s?", fileCount, backupPath)
}

// TerminalConfirmer uses pterm's interactive yes/no prompt. Both questions default to no.
type TerminalConfirmer struct{}

func (TerminalConfirmer) ConfirmBatchWrite(changeCount, fileCount int) (bool, error) {
	return pterm.DefaultInteractiveConfirm.WithDefaultValue(false).Show(batchWriteQuestion(changeCount, fileCount))
}

func (TerminalConfirmer) ConfirmRollback(fileCount int, backupPath string) (bool, error) {
	return pterm.DefaultInteractiveConfirm.WithDefaultValue(true).Show(rollbackQuestion(fileCount, backupPath))
}

// LineConfirmer reads "y/N" answers line by line, for pipes and dumb terminals.
type LineConfirmer struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewLineConfirmer(in io.Reader, out io.Writer) *LineConfirmer {
	return &LineConfirmer{reader: bufio.NewReader(in), out: out}
}

func (c *LineConfirmer) ConfirmBatchWrite(changeCount, fileCount int) (bool, error) {
	answer, err := InputPrompt(c.reader, c.out, batchWriteQuestion(changeCount, fileCount)+" (y/N):")
	if err != nil {
		return false, err
	}
	return IsYes(answer), nil
}

func (c *LineConfirmer) ConfirmRollback(fileCount int, backupPath string) (bool, error) {
	answer, err := InputPrompt(c.reader, c.out, rollbackQuestion(fileCount, backupPath)+" (y/N):")
	if err != nil {
		return false, err
	}
	return IsYes(answer), nil
}

// StaticConfirmer answers every question the same way; used for --yes.
type StaticConfirmer struct {
	Write    bool
	Rollback bool
}

func (c StaticConfirmer) ConfirmBatchWrite(int, int) (bool, error) {
	return c.Write, nil
}

func (c StaticConfirmer) ConfirmRollback(int, string) (bool, error) {
	return c.Rollback, nil
}

// NewConfirmer picks a confirmer for the current process. autoConfirm approves
// writes and rollbacks without asking.
func NewConfirmer(autoConfirm bool, in *os.File, out io.Writer) Confirmer {
	if autoConfirm {
		return StaticConfirmer{Write: true, Rollback: true}
	}
	if IsTerminal(in) {
		return TerminalConfirmer{}
	}
	return NewLineConfirmer(in, out)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
