package execs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_run(t *testing.T) {
	runner := NewRunner()

	var out strings.Builder
	err := runner.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo hello"},
	}, &out)
	assert.Nil(t, err)
	assert.Contains(t, out.String(), "hello")
}

func Test_runFailureCarriesOutputTail(t *testing.T) {
	runner := NewRunner()

	var out strings.Builder
	err := runner.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo broken pipeline >&2; exit 3"},
	}, &out)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "broken pipeline")
	assert.Contains(t, err.Error(), "exit status 3")
}

func Test_output(t *testing.T) {
	runner := NewRunner()

	out, err := runner.Output(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo captured"},
	})
	assert.Nil(t, err)
	assert.Equal(t, "captured\n", string(out))
}

func Test_canceledRun(t *testing.T) {
	runner := NewRunner()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out strings.Builder
	err := runner.Run(ctx, Command{
		Name: "sh",
		Args: []string{"-c", "sleep 10"},
	}, &out)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "canceled")
}

func Test_tailBuffer(t *testing.T) {
	tail := newTailBuffer(8)
	tail.Write([]byte("0123456789abcdef"))
	assert.Equal(t, "89abcdef", tail.Tail())
}
