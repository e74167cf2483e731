package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/enescakir/emoji"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/client"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server/streaming"
)

var pipelineTrackCmd = cli.Command{
	Name:  "track",
	Usage: "Tracks a pipeline run",
	UsageText: `pizza pipeline track <run_id>
     --server http://pizzad.mycompany.com
     --token c012367f6e6f71de17ae4c6a7baac2e9`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "server",
			Usage:    "pizzad server URL, PIZZA_SERVER environment variable alternatively",
			EnvVars:  []string{"PIZZA_SERVER"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "token",
			Usage:    "pizzad server api token, PIZZA_TOKEN environment variable alternatively",
			EnvVars:  []string{"PIZZA_TOKEN"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format. Cannot use with --wait flag",
		},
		&cli.BoolFlag{
			Name:    "wait",
			Aliases: []string{"w"},
			Usage:   "Updates the output every five seconds until the run finishes. Cannot use with --output flag",
		},
		&cli.BoolFlag{
			Name:    "follow",
			Aliases: []string{"f"},
			Usage:   "Streams the stage logs while the run is in progress",
		},
		&cli.StringFlag{
			Name:    "timeout",
			Aliases: []string{"t"},
			Usage:   "Breaks the loop within the given time. Only usable with --wait and --follow flags",
			Value:   "10m",
		},
	},
	Action: track,
}

func track(c *cli.Context) error {
	serverURL := c.String("server")
	token := c.String("token")
	output := c.String("output")
	wait := c.Bool("wait")
	follow := c.Bool("follow")
	timeoutString := c.String("timeout")

	var timeoutTime *time.Duration
	t, err := time.ParseDuration(timeoutString)
	if err != nil {
		return err
	}
	timeoutTime = &t

	runID := c.Args().First()
	if runID == "" {
		return fmt.Errorf("run id is mandatory")
	}

	config := new(oauth2.Config)
	auth := config.Client(
		oauth2.NoContext,
		&oauth2.Token{
			AccessToken: token,
		},
	)

	client := client.NewClient(serverURL, auth)

	if follow {
		return followRun(serverURL, token, runID, *timeoutTime, client)
	}

	if !wait {
		_, err := runTrackMessage(client, runID, output)
		return err
	}

	timeout := time.After(*timeoutTime)
	for {
		finished, err := runTrackMessage(client, runID, output)
		if err != nil {
			return err
		}

		if finished {
			return nil
		}

		sleep := time.After(time.Second * 5)
		timedOut := false
		select {
		case <-timeout:
			timedOut = true
		case <-sleep:
		}

		if timedOut {
			break
		}
	}

	return nil
}

func runTrackMessage(
	client client.Client,
	runID string,
	output string,
) (bool, error) {
	run, err := client.RunGet(runID)
	if err != nil {
		return false, err
	}

	if output == "json" {
		jsonString := bytes.NewBufferString("")
		e := json.NewEncoder(jsonString)
		e.SetIndent("", "  ")
		err = e.Encode(run)
		if err != nil {
			return false, fmt.Errorf("cannot deserialize run %s", err)
		}

		fmt.Println(jsonString.String())
		return true, nil
	}

	fmt.Printf(
		"%v Run (%s) is %s %s\n",
		emoji.BackhandIndexPointingRight,
		runID,
		run.Status,
		run.Desc,
	)

	for _, result := range run.Results {
		if result.StatusDesc != "" {
			fmt.Printf("\t%v Stage %s is %s, %s\n", stageEmoji(result.Status), result.ID, result.Status, result.StatusDesc)
		} else {
			fmt.Printf("\t%v Stage %s is %s\n", stageEmoji(result.Status), result.ID, result.Status)
		}
	}

	finished, failed := endState(run)
	if failed {
		return finished, fmt.Errorf("run failed: %s", run.Desc)
	}
	return finished, nil
}

// endState tells if the run settled, and if it settled on a failure
func endState(run *delivery.Run) (bool, bool) {
	return run.Status.Finished(), run.Status == delivery.RunFailure
}

func stageEmoji(status delivery.StageStatus) emoji.Emoji {
	switch status {
	case delivery.StageSuccess:
		return emoji.CheckMark
	case delivery.StageFailure:
		return emoji.CrossMark
	case delivery.StageSkipped:
		return emoji.Bookmark
	default:
		return emoji.HourglassNotDone
	}
}

// followRun prints the live stage logs from the websocket stream, then the
// closing run summary
func followRun(
	serverURL string,
	token string,
	runID string,
	timeout time.Duration,
	client client.Client,
) error {
	wsURL, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("cannot parse the server url %s", err)
	}
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws"
	wsURL.RawQuery = "access_token=" + url.QueryEscape(token)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("cannot connect to %s: %s", wsURL.Host, err)
	}
	defer conn.Close()

	// the run may have settled before the socket opened
	finished, err := runTrackMessage(client, runID, "")
	if finished || err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("stream closed: %s", err)
		}

		var envelope streaming.StreamingEvent
		err = json.Unmarshal(message, &envelope)
		if err != nil {
			continue
		}

		switch envelope.Event {
		case streaming.RunLogEventString:
			var logEvent streaming.RunLogEvent
			err = json.Unmarshal(message, &logEvent)
			if err != nil || logEvent.RunId != runID {
				continue
			}
			fmt.Println(logEvent.LogLine)
		case streaming.RunStatusUpdatedEventString:
			var runEvent streaming.RunEvent
			err = json.Unmarshal(message, &runEvent)
			if err != nil || runEvent.Run == nil || runEvent.Run.ID != runID {
				continue
			}
			if runEvent.Run.Status.Finished() {
				_, err = runTrackMessage(client, runID, "")
				return err
			}
		}
	}
}
