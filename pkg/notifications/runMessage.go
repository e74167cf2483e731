package notifications

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
)

const colorGreen = 3066993
const colorOrange = 15105570
const colorRed = 15158332

type runMessage struct {
	run *delivery.Run
}

// MessageFromRun builds the notification for a finished pipeline run
func MessageFromRun(run *delivery.Run) Message {
	return &runMessage{
		run: run,
	}
}

func (rm *runMessage) headline() string {
	repo := rm.run.Trigger.Repo
	switch rm.run.Status {
	case delivery.RunSuccess:
		return fmt.Sprintf("Delivery of %s succeeded", repo)
	case delivery.RunUnstable:
		return fmt.Sprintf("Delivery of %s succeeded with warnings", repo)
	default:
		return fmt.Sprintf("Delivery of %s failed", repo)
	}
}

func (rm *runMessage) ref() string {
	if rm.run.Trigger.Event == delivery.Tag {
		return rm.run.Trigger.Tag
	}
	return rm.run.Trigger.Branch
}

func (rm *runMessage) AsSlackMessage() (*slackMessage, error) {
	msg := &slackMessage{
		Text:   rm.headline(),
		Blocks: []Block{},
	}

	msg.Blocks = append(msg.Blocks,
		Block{
			Type: section,
			Text: &Text{
				Type: markdown,
				Text: msg.Text,
			},
		},
	)

	elements := []Text{
		{Type: markdown, Text: fmt.Sprintf(":dart: %s", rm.ref())},
		{Type: markdown, Text: fmt.Sprintf(":paperclip: %s", commitLink(rm.run.Trigger.Repo, rm.run.Trigger.SHA))},
	}
	if rm.run.Image != "" {
		elements = append(elements, Text{Type: markdown, Text: fmt.Sprintf(":package: %s", rm.run.Image)})
	}
	msg.Blocks = append(msg.Blocks,
		Block{
			Type:     contextString,
			Elements: elements,
		},
	)

	if rm.run.Status == delivery.RunFailure || rm.run.Status == delivery.RunUnstable {
		msg.Blocks = append(msg.Blocks,
			Block{
				Type: contextString,
				Elements: []Text{
					{
						Type: markdown,
						Text: fmt.Sprintf(":exclamation: *Error* :exclamation: \n%s", rm.run.Desc),
					},
				},
			},
		)
	}

	stageLines := []Text{}
	for _, result := range rm.run.Results {
		stageLines = append(stageLines, Text{
			Type: markdown,
			Text: fmt.Sprintf("%s %s", slackStatusEmoji(result.Status), result.ID),
		})
	}
	if len(stageLines) != 0 {
		msg.Blocks = append(msg.Blocks,
			Block{
				Type:     contextString,
				Elements: stageLines,
			},
		)
	}

	return msg, nil
}

func (rm *runMessage) AsDiscordMessage() (*discordMessage, error) {
	msg := &discordMessage{
		Text: rm.headline(),
		Embed: &discordgo.MessageEmbed{
			Type:        "article",
			Description: "",
			Color:       colorGreen,
		},
	}

	msg.Embed.Description += fmt.Sprintf(":dart: %s\n", rm.ref())
	msg.Embed.Description += fmt.Sprintf(":paperclip: %s\n", discordCommitLink(rm.run.Trigger.Repo, rm.run.Trigger.SHA))
	if rm.run.Image != "" {
		msg.Embed.Description += fmt.Sprintf(":package: %s\n", rm.run.Image)
	}

	switch rm.run.Status {
	case delivery.RunUnstable:
		msg.Embed.Description += fmt.Sprintf(":exclamation: *Error* :exclamation: \n%s\n", rm.run.Desc)
		msg.Embed.Color = colorOrange
	case delivery.RunFailure:
		msg.Embed.Description += fmt.Sprintf(":exclamation: *Error* :exclamation: \n%s\n", rm.run.Desc)
		msg.Embed.Color = colorRed
	}

	for _, result := range rm.run.Results {
		msg.Embed.Description += fmt.Sprintf("%s %s\n", slackStatusEmoji(result.Status), result.ID)
	}

	return msg, nil
}

func (rm *runMessage) RepositoryName() string {
	return rm.run.Trigger.Repo
}

func (rm *runMessage) SHA() string {
	return rm.run.Trigger.SHA
}

func (rm *runMessage) CustomChannel() string {
	return ""
}

func slackStatusEmoji(status delivery.StageStatus) string {
	switch status {
	case delivery.StageSuccess:
		return ":white_check_mark:"
	case delivery.StageFailure:
		return ":x:"
	case delivery.StageSkipped:
		return ":fast_forward:"
	default:
		return ":hourglass:"
	}
}
