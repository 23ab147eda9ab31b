package utils

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineConfirmer(t *testing.T) {
	var out bytes.Buffer
	confirmer := NewLineConfirmer(strings.NewReader("y\nno\n"), &out)

	ok, err := confirmer.ConfirmBatchWrite(3, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Write 3 doc comment(s) to 2 file(s)?")

	ok, err = confirmer.ConfirmRollback(2, "/backups/x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Restore 2 file(s) from /backups/x?")
}

func TestLineConfirmer_EOFDeclines(t *testing.T) {
	confirmer := NewLineConfirmer(strings.NewReader(""), &bytes.Buffer{})

	ok, err := confirmer.ConfirmBatchWrite(1, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLineConfirmer_AnswerWithoutNewline(t *testing.T) {
	confirmer := NewLineConfirmer(strings.NewReader("YES"), &bytes.Buffer{})

	ok, err := confirmer.ConfirmBatchWrite(1, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaticConfirmer(t *testing.T) {
	confirmer := StaticConfirmer{Write: true}

	ok, err := confirmer.ConfirmBatchWrite(1, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = confirmer.ConfirmRollback(1, "x")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewConfirmer(t *testing.T) {
	assert.Equal(t, StaticConfirmer{Write: true, Rollback: true}, NewConfirmer(true, os.Stdin, &bytes.Buffer{}))

	file, err := os.Create(filepath.Join(t.TempDir(), "answers"))
	require.NoError(t, err)
	defer file.Close()

	assert.IsType(t, &LineConfirmer{}, NewConfirmer(false, file, &bytes.Buffer{}))
	assert.False(t, IsTerminal(file))
	assert.False(t, IsTerminal(nil))
}

func TestInputPromptWithContext_Cancelled(t *testing.T) {
	reader, writer, err := os.Pipe()
	require.NoError(t, err)
	defer writer.Close()
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = InputPromptWithContext(ctx, bufio.NewReader(reader), io.Discard, "?")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsYes(t *testing.T) {
	for _, answer := range []string{"y", "Y", "yes", " Yes "} {
		assert.True(t, IsYes(answer), answer)
	}
	for _, answer := range []string{"", "n", "no", "yep"} {
		assert.False(t, IsYes(answer), answer)
	}
}
