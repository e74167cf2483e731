package streaming

import (
	"bytes"
	"encoding/json"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sirupsen/logrus"
)

const RunCreatedEventString = "runCreated"
const RunStatusUpdatedEventString = "runStatusUpdated"
const RunLogEventString = "runLog"

type StreamingEvent struct {
	Event string `json:"event"`
}

type RunEvent struct {
	Run *delivery.Run `json:"run"`
	StreamingEvent
}

type RunLogEvent struct {
	RunId   string `json:"runId"`
	LogLine string `json:"logLine,omitempty"`
	StreamingEvent
}

// BroadcastRunEvent pushes a run state snapshot to every connected client
func BroadcastRunEvent(hub *ClientHub, event string, run *delivery.Run) {
	if hub == nil {
		return
	}

	jsonString, err := json.Marshal(RunEvent{
		StreamingEvent: StreamingEvent{Event: event},
		Run:            run,
	})
	if err != nil {
		logrus.Errorf("could not serialize run event: %s", err)
		return
	}

	hub.Broadcast <- jsonString
}

// RunLogWriter adapts the hub to an io.Writer so stage output
// can be streamed line by line
type RunLogWriter struct {
	hub   *ClientHub
	runId string
}

func NewRunLogWriter(hub *ClientHub, runId string) *RunLogWriter {
	return &RunLogWriter{hub: hub, runId: runId}
}

func (w *RunLogWriter) Write(p []byte) (int, error) {
	if w.hub == nil {
		return len(p), nil
	}

	for _, line := range bytes.Split(p, newline) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		jsonString, err := json.Marshal(RunLogEvent{
			StreamingEvent: StreamingEvent{Event: RunLogEventString},
			RunId:          w.runId,
			LogLine:        string(line),
		})
		if err != nil {
			continue
		}

		select {
		case w.hub.Broadcast <- jsonString:
		default: // a slow client never blocks a running pipeline
		}
	}

	return len(p), nil
}
