package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Patcher applies a binary diff to base and returns the patched bytes.
type Patcher interface {
	Apply(ctx context.Context, base, patch []byte) ([]byte, error)
}

type PatcherFunc func(ctx context.Context, base, patch []byte) ([]byte, error)

func (f PatcherFunc) Apply(ctx context.Context, base, patch []byte) ([]byte, error) {
	return f(ctx, base, patch)
}

var ErrNoPatchCommand = errors.New("no patch command configured")

// ExecPatcher runs an external patch tool. Args may reference the {base},
// {patch} and {out} placeholders, which are replaced with temp file paths.
type ExecPatcher struct {
	Command string
	Args    []string
}

func NewExecPatcher(command string, args []string) *ExecPatcher {
	return &ExecPatcher{Command: command, Args: args}
}

func (p *ExecPatcher) Apply(ctx context.Context, base, patch []byte) ([]byte, error) {
	if p.Command == "" {
		return nil, ErrNoPatchCommand
	}

	dir, err := os.MkdirTemp("", "themes-patch-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create patch workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	basePath := filepath.Join(dir, "base")
	patchPath := filepath.Join(dir, "patch")
	outPath := filepath.Join(dir, "out")

	if err := os.WriteFile(basePath, base, 0644); err != nil {
		return nil, fmt.Errorf("failed to stage base file: %w", err)
	}
	if err := os.WriteFile(patchPath, patch, 0644); err != nil {
		return nil, fmt.Errorf("failed to stage patch file: %w", err)
	}

	replacer := strings.NewReplacer("{base}", basePath, "{patch}", patchPath, "{out}", outPath)
	args := make([]string, len(p.Args))
	for i, arg := range p.Args {
		args[i] = replacer.Replace(arg)
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Command, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", p.Command, err, strings.TrimSpace(output.String()))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("patch tool produced no output: %w", err)
	}

	return out, nil
}
