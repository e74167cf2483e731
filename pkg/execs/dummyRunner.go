package execs

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// DummyRunner records invocations and plays back scripted results in tests
type DummyRunner struct {
	mutex sync.Mutex
	// Commands are the recorded invocations in call order
	Commands []Command
	// Results maps the tool name to the scripted result, a missing entry succeeds
	Results map[string]DummyResult
	// MissingTools fail LookPath
	MissingTools map[string]bool
}

type DummyResult struct {
	Output string
	Err    error
}

func NewDummyRunner() *DummyRunner {
	return &DummyRunner{
		Results:      map[string]DummyResult{},
		MissingTools: map[string]bool{},
	}
}

func (r *DummyRunner) Run(ctx context.Context, command Command, out io.Writer) error {
	r.mutex.Lock()
	r.Commands = append(r.Commands, command)
	result := r.Results[command.Name]
	r.mutex.Unlock()

	if result.Output != "" {
		out.Write([]byte(result.Output))
	}
	return result.Err
}

func (r *DummyRunner) Output(ctx context.Context, command Command) ([]byte, error) {
	r.mutex.Lock()
	r.Commands = append(r.Commands, command)
	result := r.Results[command.Name]
	r.mutex.Unlock()

	if result.Err != nil {
		return nil, result.Err
	}
	return []byte(result.Output), nil
}

func (r *DummyRunner) LookPath(name string) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.MissingTools[name] {
		return "", fmt.Errorf("%s is not installed or not on the PATH", name)
	}
	return "/usr/local/bin/" + name, nil
}

// Invoked tells if the tool was called at least once
func (r *DummyRunner) Invoked(name string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, command := range r.Commands {
		if command.Name == name {
			return true
		}
	}
	return false
}

// ArgsOf returns the args of the first invocation of the tool
func (r *DummyRunner) ArgsOf(name string) []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, command := range r.Commands {
		if command.Name == name {
			return command.Args
		}
	}
	return nil
}
