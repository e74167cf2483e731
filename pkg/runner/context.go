package runner

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sami-chanane/thesis-pizza-app/pkg/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
)

// Context carries the state of one run across its stages.
//
// Image and PreviousImage have a single writer stage each and are only read
// by stages ordered after that writer, so they carry no lock. Everything a
// concurrent stage touches goes through the locked recorder methods.
type Context struct {
	RunID     string
	Trigger   *delivery.Trigger
	Settings  *delivery.Settings
	Workspace string

	// Image is written by build-push, image-scan, sign and deploy read it
	Image *delivery.ImageRef
	// PreviousImage is the rollback point, deploy records it before it
	// touches the cluster
	PreviousImage string

	Log *logrus.Entry
	// Output mirrors the stage logs, the CLI points it at the terminal
	Output io.Writer

	store     *artifact.Store
	mu        sync.Mutex
	artifacts map[delivery.StageID][]string
	summaries map[delivery.StageID]map[string]interface{}
}

func NewContext(
	runID string,
	trigger *delivery.Trigger,
	settings *delivery.Settings,
	workspace string,
	store *artifact.Store,
) *Context {
	return &Context{
		RunID:     runID,
		Trigger:   trigger,
		Settings:  settings,
		Workspace: workspace,
		Log:       logrus.WithField("run", runID),
		store:     store,
		artifacts: map[delivery.StageID][]string{},
		summaries: map[delivery.StageID]map[string]interface{}{},
	}
}

// LogWriter opens the log sink of a stage. The output lands in the run's
// artifact folder and is mirrored to Output when one is set.
func (c *Context) LogWriter(stage delivery.StageID) io.WriteCloser {
	var file io.WriteCloser
	if c.store != nil {
		writer, err := c.store.LogWriter(c.RunID, string(stage))
		if err != nil {
			c.Log.Warnf("cannot open the log of %s: %s", stage, err)
		} else {
			file = writer
		}
	}

	writers := []io.Writer{}
	if file != nil {
		writers = append(writers, file)
	}
	if c.Output != nil {
		writers = append(writers, c.Output)
	}
	if len(writers) == 0 {
		return nopWriteCloser{io.Discard}
	}

	return &stageLog{Writer: io.MultiWriter(writers...), file: file}
}

// SaveArtifact stores a file in the run's artifact folder and records it on
// the stage's result.
func (c *Context) SaveArtifact(stage delivery.StageID, name string, content []byte) error {
	if c.store != nil {
		err := c.store.Save(c.RunID, name, content)
		if err != nil {
			return err
		}
	}
	c.RecordArtifact(stage, name)
	return nil
}

// RecordArtifact marks a file as produced by a stage
func (c *Context) RecordArtifact(stage delivery.StageID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts[stage] = append(c.artifacts[stage], name)
}

// SetSummary attaches stage specific details to the result: scan verdicts,
// image digests, rollout outcomes
func (c *Context) SetSummary(stage delivery.StageID, summary map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries[stage] = summary
}

func (c *Context) artifactsOf(stage delivery.StageID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.artifacts[stage]) == 0 {
		return nil
	}
	return append([]string{}, c.artifacts[stage]...)
}

func (c *Context) summaryOf(stage delivery.StageID) map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summaries[stage]
}

type stageLog struct {
	io.Writer
	file io.WriteCloser
}

func (l *stageLog) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
