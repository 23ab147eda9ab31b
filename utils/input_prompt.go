package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/meysamhadeli/docai/constants/lipgloss"
)

// InputPrompt prints question and reads one trimmed line from reader.
// End of input yields an empty answer.
func InputPrompt(reader *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, lipgloss.BlueSky.Render(question+" "))

	userInput, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return strings.TrimSpace(userInput), nil
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(userInput), nil
}

// InputPromptWithContext is InputPrompt that gives up when ctx is done.
func InputPromptWithContext(ctx context.Context, reader *bufio.Reader, out io.Writer, question string) (string, error) {
	type answer struct {
		text string
		err  error
	}
	answers := make(chan answer, 1)

	go func() {
		text, err := InputPrompt(reader, out, question)
		answers <- answer{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return "", ctx.Err()
	case a := <-answers:
		return a.text, a.err
	}
}

// IsYes accepts "y" and "yes" in any case.
func IsYes(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
