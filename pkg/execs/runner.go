package execs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command is one external tool invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to a minimal base environment,
	// tool credentials are passed explicitly, never inherited
	Env []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes external tools
type Runner interface {
	// Run streams combined output to out and fails on a non zero exit
	Run(ctx context.Context, command Command, out io.Writer) error
	// Output captures stdout, stderr goes to the error on failure
	Output(ctx context.Context, command Command) ([]byte, error)
	// LookPath resolves the tool on the PATH
	LookPath(name string) (string, error)
}

type runner struct{}

func NewRunner() Runner {
	return &runner{}
}

func baseEnv() []string {
	env := []string{}
	for _, key := range []string{"PATH", "HOME", "TMPDIR", "USER"} {
		if value, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+value)
		}
	}
	return env
}

func (r *runner) Run(ctx context.Context, command Command, out io.Writer) error {
	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	cmd.Env = append(baseEnv(), command.Env...)

	tail := newTailBuffer(4096)
	combined := io.MultiWriter(out, tail)

	pipeReader, pipeWriter := io.Pipe()
	cmd.Stdout = pipeWriter
	cmd.Stderr = pipeWriter

	copyDone := make(chan struct{})
	go func() {
		buffer := make([]byte, 1024)
		for {
			n, err := pipeReader.Read(buffer)
			if n > 0 {
				combined.Write(buffer[0:n])
			}
			if err != nil {
				pipeReader.Close()
				break
			}
		}
		close(copyDone)
	}()

	err := cmd.Run()
	pipeWriter.Close()
	<-copyDone

	if ctx.Err() != nil {
		return fmt.Errorf("%s canceled: %s", command.Name, ctx.Err())
	}
	if err != nil {
		return fmt.Errorf("%s: %s: %s", command.Name, err, tail.Tail())
	}
	return nil
}

func (r *runner) Output(ctx context.Context, command Command) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command.Name, command.Args...)
	cmd.Dir = command.Dir
	cmd.Env = append(baseEnv(), command.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s canceled: %s", command.Name, ctx.Err())
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %s", command.Name, err, tailOf(stderr.String(), 4096))
	}
	return stdout.Bytes(), nil
}

func (r *runner) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s is not installed or not on the PATH", name)
	}
	return path, nil
}

func tailOf(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}

// tailBuffer keeps the last capacity bytes written to it
type tailBuffer struct {
	capacity int
	buffer   []byte
}

func newTailBuffer(capacity int) *tailBuffer {
	return &tailBuffer{capacity: capacity}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buffer = append(b.buffer, p...)
	if len(b.buffer) > b.capacity {
		b.buffer = b.buffer[len(b.buffer)-b.capacity:]
	}
	return len(p), nil
}

func (b *tailBuffer) Tail() string {
	return strings.TrimSpace(string(b.buffer))
}
