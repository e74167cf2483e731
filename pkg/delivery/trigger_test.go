package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_triggerValidate(t *testing.T) {
	trigger := &Trigger{
		Repo:   "sami-chanane/pizza-app",
		SHA:    "ea9ab6d8f0f20e2b6839d3fe9d6d8f955c516b72",
		Branch: "main",
		Event:  Push,
	}
	assert.Nil(t, trigger.Validate())

	trigger = &Trigger{
		SHA:   "ea9ab6d8f0f20e2b6839d3fe9d6d8f955c516b72",
		Event: Push,
	}
	assert.NotNil(t, trigger.Validate(), "repo is mandatory")

	trigger = &Trigger{
		Repo:  "sami-chanane/pizza-app",
		SHA:   "ea9ab6d",
		Event: Push,
	}
	assert.NotNil(t, trigger.Validate(), "short hashes are not accepted")

	trigger = &Trigger{
		Repo:  "sami-chanane/pizza-app",
		SHA:   "ea9ab6d8f0f20e2b6839d3fe9d6d8f955c516b72",
		Event: Tag,
	}
	assert.NotNil(t, trigger.Validate(), "tag events must carry the tag")
}

func Test_imageTag(t *testing.T) {
	trigger := &Trigger{
		SHA:   "ea9ab6d8f0f20e2b6839d3fe9d6d8f955c516b72",
		Event: Push,
	}
	tag, err := trigger.ImageTag()
	assert.Nil(t, err)
	assert.Equal(t, "ea9ab6d", tag)

	trigger = &Trigger{
		SHA:   "ea9ab6d8f0f20e2b6839d3fe9d6d8f955c516b72",
		Event: Tag,
		Tag:   "v1.2.3",
	}
	tag, err = trigger.ImageTag()
	assert.Nil(t, err)
	assert.Equal(t, "v1.2.3", tag)

	trigger = &Trigger{
		SHA:   "ea9ab6d8f0f20e2b6839d3fe9d6d8f955c516b72",
		Event: Tag,
		Tag:   "release-candidate",
	}
	_, err = trigger.ImageTag()
	assert.NotNil(t, err, "only semver tags make image tags")
}
