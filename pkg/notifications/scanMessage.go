package notifications

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

type scanMessage struct {
	repo    string
	image   string
	summary string
}

// MessageFromScanFindings builds the notification for a scheduled
// rescan that found new vulnerabilities in a deployed image
func MessageFromScanFindings(repo string, image string, summary string) Message {
	return &scanMessage{
		repo:    repo,
		image:   image,
		summary: summary,
	}
}

func (sm *scanMessage) AsSlackMessage() (*slackMessage, error) {
	msg := &slackMessage{
		Text:   fmt.Sprintf("Vulnerabilities found in the deployed image of %s", sm.repo),
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
		Block{
			Type: contextString,
			Elements: []Text{
				{Type: markdown, Text: fmt.Sprintf(":package: %s", sm.image)},
				{Type: markdown, Text: fmt.Sprintf(":warning: %s", sm.summary)},
			},
		},
	)

	return msg, nil
}

func (sm *scanMessage) AsDiscordMessage() (*discordMessage, error) {
	msg := &discordMessage{
		Text: fmt.Sprintf("Vulnerabilities found in the deployed image of %s", sm.repo),
		Embed: &discordgo.MessageEmbed{
			Type:        "article",
			Description: "",
			Color:       colorOrange,
		},
	}

	msg.Embed.Description += fmt.Sprintf(":package: %s\n", sm.image)
	msg.Embed.Description += fmt.Sprintf(":warning: %s\n", sm.summary)

	return msg, nil
}

func (sm *scanMessage) RepositoryName() string {
	return sm.repo
}

func (sm *scanMessage) SHA() string {
	return ""
}

func (sm *scanMessage) CustomChannel() string {
	return ""
}
