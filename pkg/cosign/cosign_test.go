package cosign

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sami-chanane/thesis-pizza-app/pkg/execs"
)

const pinnedImage = "registry.digitalocean.com/pizza-registry/pizza-app@sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func Test_sign(t *testing.T) {
	runner := execs.NewDummyRunner()

	signer := NewSigner(runner, "", "/keys/cosign.key", "/keys/cosign.pub")
	var out strings.Builder
	err := signer.Sign(context.Background(), pinnedImage, &out)
	assert.Nil(t, err)

	args := runner.ArgsOf("cosign")
	assert.Equal(t, []string{"sign", "--key", "/keys/cosign.key", "--yes", pinnedImage}, args)
}

func Test_signRejectsTagReferences(t *testing.T) {
	runner := execs.NewDummyRunner()

	signer := NewSigner(runner, "", "/keys/cosign.key", "/keys/cosign.pub")
	var out strings.Builder
	err := signer.Sign(context.Background(), "registry.digitalocean.com/pizza-registry/pizza-app:latest", &out)
	assert.NotNil(t, err)
	assert.False(t, runner.Invoked("cosign"), "cosign must not run on tag references")
}

func Test_signWithoutKey(t *testing.T) {
	runner := execs.NewDummyRunner()

	signer := NewSigner(runner, "", "", "")
	var out strings.Builder
	err := signer.Sign(context.Background(), pinnedImage, &out)
	assert.NotNil(t, err)
}

func Test_verify(t *testing.T) {
	runner := execs.NewDummyRunner()
	runner.Results["cosign"] = execs.DummyResult{
		Output: `[{"critical":{"identity":{"docker-reference":"registry.digitalocean.com/pizza-registry/pizza-app"},"image":{"docker-manifest-digest":"sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},"type":"cosign container image signature"}}]`,
	}

	signer := NewSigner(runner, "", "/keys/cosign.key", "/keys/cosign.pub")
	var out strings.Builder
	err := signer.Verify(context.Background(), pinnedImage, &out)
	assert.Nil(t, err)
}

func Test_verifySubjectMismatch(t *testing.T) {
	runner := execs.NewDummyRunner()
	runner.Results["cosign"] = execs.DummyResult{
		Output: `[{"critical":{"image":{"docker-manifest-digest":"sha256:0000000000000000000000000000000000000000000000000000000000000000"}}}]`,
	}

	signer := NewSigner(runner, "", "/keys/cosign.key", "/keys/cosign.pub")
	var out strings.Builder
	err := signer.Verify(context.Background(), pinnedImage, &out)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func Test_verifyFailure(t *testing.T) {
	runner := execs.NewDummyRunner()
	runner.Results["cosign"] = execs.DummyResult{
		Err: fmt.Errorf("cosign: exit status 1: no matching signatures"),
	}

	signer := NewSigner(runner, "", "/keys/cosign.key", "/keys/cosign.pub")
	var out strings.Builder
	err := signer.Verify(context.Background(), pinnedImage, &out)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "no matching signatures")
}
