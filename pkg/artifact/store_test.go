package artifact

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_saveAndList(t *testing.T) {
	root, err := os.MkdirTemp("", "artifact-test")
	assert.Nil(t, err)
	defer os.RemoveAll(root)

	store, err := NewStore(root)
	assert.Nil(t, err)

	err = store.Save("run-1", "coverage.out", []byte("mode: set\n"))
	assert.Nil(t, err)
	err = store.Save("run-1", "report.txt", []byte("ok\n"))
	assert.Nil(t, err)

	artifacts, err := store.List("run-1")
	assert.Nil(t, err)
	assert.Equal(t, 2, len(artifacts))
	assert.Equal(t, "coverage.out", artifacts[0].Name)
	assert.Equal(t, int64(10), artifacts[0].Size)
	assert.Equal(t, "report.txt", artifacts[1].Name)

	reader, err := store.Open("run-1", "coverage.out")
	assert.Nil(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	assert.Nil(t, err)
	assert.Equal(t, "mode: set\n", string(content))
}

func Test_logWriterAppends(t *testing.T) {
	root, err := os.MkdirTemp("", "artifact-test")
	assert.Nil(t, err)
	defer os.RemoveAll(root)

	store, err := NewStore(root)
	assert.Nil(t, err)

	writer, err := store.LogWriter("run-1", "unit-tests")
	assert.Nil(t, err)
	_, err = writer.Write([]byte("first line\n"))
	assert.Nil(t, err)
	writer.Close()

	writer, err = store.LogWriter("run-1", "unit-tests")
	assert.Nil(t, err)
	_, err = writer.Write([]byte("second line\n"))
	assert.Nil(t, err)
	writer.Close()

	content, err := os.ReadFile(filepath.Join(root, "run-1", "logs", "unit-tests.log"))
	assert.Nil(t, err)
	assert.Equal(t, "first line\nsecond line\n", string(content))

	artifacts, err := store.List("run-1")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(artifacts))
	assert.Equal(t, filepath.Join("logs", "unit-tests.log"), artifacts[0].Name)
}

func Test_escapingNamesAreRejected(t *testing.T) {
	root, err := os.MkdirTemp("", "artifact-test")
	assert.Nil(t, err)
	defer os.RemoveAll(root)

	store, err := NewStore(root)
	assert.Nil(t, err)
	err = store.Save("run-1", "report.txt", []byte("ok\n"))
	assert.Nil(t, err)

	_, err = store.Open("run-1", "../run-2/report.txt")
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "escapes the run folder")

	_, err = store.Open("../run-1", "report.txt")
	assert.NotNil(t, err)

	err = store.Save("run-1", "/etc/passwd", []byte("nope"))
	assert.NotNil(t, err)

	artifacts, err := store.List("run-1")
	assert.Nil(t, err)
	assert.Equal(t, 1, len(artifacts))
}

func Test_listMissingRunIsEmpty(t *testing.T) {
	root, err := os.MkdirTemp("", "artifact-test")
	assert.Nil(t, err)
	defer os.RemoveAll(root)

	store, err := NewStore(root)
	assert.Nil(t, err)

	artifacts, err := store.List("never-ran")
	assert.Nil(t, err)
	assert.Equal(t, 0, len(artifacts))
}
