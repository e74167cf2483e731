package notifications

type Message interface {
	AsSlackMessage() (*slackMessage, error)
	AsDiscordMessage() (*discordMessage, error)
	RepositoryName() string
	SHA() string
	CustomChannel() string
}
