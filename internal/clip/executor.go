package clip

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout []byte, err error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%w: %s", err, compactOutput(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// compactOutput trims tool stderr down to something loggable: the last
// couple of lines carry the actual failure reason.
func compactOutput(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return "no error output"
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 3 {
		lines = lines[len(lines)-3:]
	}
	joined := strings.Join(lines, " / ")
	if len(joined) > 500 {
		joined = joined[len(joined)-500:]
	}
	return joined
}
