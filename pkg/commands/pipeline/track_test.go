package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
)

func Test_endStateIfRunIsQueued(t *testing.T) {
	finished, failed := endState(&delivery.Run{Status: delivery.RunQueued})

	assert.Equal(t, false, finished)
	assert.Equal(t, false, failed)
}

func Test_endStateIfRunIsRunning(t *testing.T) {
	finished, failed := endState(&delivery.Run{Status: delivery.RunRunning})

	assert.Equal(t, false, finished)
	assert.Equal(t, false, failed)
}

func Test_endStateIfRunFailed(t *testing.T) {
	finished, failed := endState(&delivery.Run{Status: delivery.RunFailure})

	assert.Equal(t, true, finished)
	assert.Equal(t, true, failed)
}

func Test_endStateIfRunIsUnstable(t *testing.T) {
	// an advisory stage failed, the run still counts as delivered
	finished, failed := endState(&delivery.Run{Status: delivery.RunUnstable})

	assert.Equal(t, true, finished)
	assert.Equal(t, false, failed)
}

func Test_endStateIfRunSucceeded(t *testing.T) {
	finished, failed := endState(&delivery.Run{Status: delivery.RunSuccess})

	assert.Equal(t, true, finished)
	assert.Equal(t, false, failed)
}
