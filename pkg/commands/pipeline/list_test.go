package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
)

func Test_reverse(t *testing.T) {
	runs := []*delivery.Run{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	reversed := reverse(runs)

	assert.Equal(t, "c", reversed[0].ID)
	assert.Equal(t, "b", reversed[1].ID)
	assert.Equal(t, "a", reversed[2].ID)

	assert.Equal(t, 0, len(reverse([]*delivery.Run{})))
}

func Test_makeSingleLine(t *testing.T) {
	assert.Equal(t, "subject; body", makeSingleLine("subject\n\nbody"))
	assert.Equal(t, "one line", makeSingleLine("one line"))
}

func Test_limitMessage(t *testing.T) {
	long := strings.Repeat("x", 100)
	assert.Equal(t, 79, len(limitMessage(long)))
	assert.Equal(t, "short", limitMessage("short"))
}

func Test_renderRun(t *testing.T) {
	color.NoColor = true

	run := &delivery.Run{
		ID:      "7b2f9e2c-55a1-4c7e-9d91-0e6eb4d8f0a2",
		Type:    model.RunTypeDelivery,
		Status:  delivery.RunSuccess,
		Created: time.Now().Add(-2 * time.Hour).Unix(),
		Trigger: delivery.Trigger{
			Repo:       "pizza-team/pizza-app",
			SHA:        "ec8e4f5dcb2750789716594835d3f0fef89d6bcf",
			Branch:     "main",
			Event:      delivery.Push,
			AuthorName: "Jane Doe",
			Message:    "margherita: fix the oven temperature",
		},
		Image: "registry.digitalocean.com/pizza-registry/pizza-app:ec8e4f5",
	}

	rendered := RenderRun(run)

	assert.Contains(t, rendered, "success")
	assert.Contains(t, rendered, "pizza-team/pizza-app@main")
	assert.Contains(t, rendered, "ec8e4f5")
	assert.Contains(t, rendered, "margherita: fix the oven temperature")
	assert.Contains(t, rendered, "registry.digitalocean.com/pizza-registry/pizza-app:ec8e4f5")
	assert.NotContains(t, rendered, "ROLLBACK")
}

func Test_renderRunMarksRollbacks(t *testing.T) {
	color.NoColor = true

	run := &delivery.Run{
		ID:     "rollback-run",
		Type:   model.RunTypeRollback,
		Status: delivery.RunSuccess,
		Trigger: delivery.Trigger{
			Repo:   "pizza-team/pizza-app",
			SHA:    "ec8e4f5dcb2750789716594835d3f0fef89d6bcf",
			Branch: "main",
		},
	}

	assert.Contains(t, RenderRun(run), "**ROLLBACK**")
}

func Test_renderRunOnTagEvent(t *testing.T) {
	color.NoColor = true

	run := &delivery.Run{
		ID:     "tag-run",
		Status: delivery.RunSuccess,
		Trigger: delivery.Trigger{
			Repo:  "pizza-team/pizza-app",
			SHA:   "ec8e4f5dcb2750789716594835d3f0fef89d6bcf",
			Tag:   "v1.2.0",
			Event: delivery.Tag,
		},
	}

	assert.Contains(t, RenderRun(run), "pizza-team/pizza-app@v1.2.0")
}
