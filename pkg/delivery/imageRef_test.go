package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_parseImageRef(t *testing.T) {
	ref, err := ParseImageRef("registry.digitalocean.com/pizza-registry/pizza-app:ea9ab6d")
	assert.Nil(t, err)
	assert.Equal(t, "registry.digitalocean.com", ref.Registry)
	assert.Equal(t, "pizza-registry", ref.Repository)
	assert.Equal(t, "pizza-app", ref.Name)
	assert.Equal(t, "ea9ab6d", ref.Tag)
	assert.Equal(t, "registry.digitalocean.com/pizza-registry/pizza-app:ea9ab6d", ref.String())

	ref, err = ParseImageRef("localhost:5000/team/pizza/pizza-app")
	assert.Nil(t, err)
	assert.Equal(t, "localhost:5000", ref.Registry)
	assert.Equal(t, "team/pizza", ref.Repository)
	assert.Equal(t, "latest", ref.Tag)

	_, err = ParseImageRef("pizza-app:latest")
	assert.NotNil(t, err, "unqualified references are not accepted")

	_, err = ParseImageRef("myregistry/pizza/pizza-app:latest")
	assert.NotNil(t, err, "registry part must look like a host")
}

func Test_withDigest(t *testing.T) {
	ref := &ImageRef{
		Registry:   "registry.digitalocean.com",
		Repository: "pizza-registry",
		Name:       "pizza-app",
		Tag:        "ea9ab6d",
	}

	_, err := ref.WithDigest()
	assert.NotNil(t, err, "digest is mandatory for the pinned form")

	ref.Digest = "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	pinned, err := ref.WithDigest()
	assert.Nil(t, err)
	assert.Equal(t, "registry.digitalocean.com/pizza-registry/pizza-app@sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", pinned)

	ref.Digest = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	_, err = ref.WithDigest()
	assert.NotNil(t, err, "digest must carry the sha256 prefix")
}
