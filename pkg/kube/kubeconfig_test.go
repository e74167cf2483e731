package kube

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func Test_staticProvider(t *testing.T) {
	provider := NewStaticProvider("")
	_, err := provider.Kubeconfig(context.TODO())
	assert.NotNil(t, err)

	provider = NewStaticProvider(filepath.Join(t.TempDir(), "missing"))
	_, err = provider.Kubeconfig(context.TODO())
	assert.NotNil(t, err)
}

func Test_doProviderCachesKubeconfig(t *testing.T) {
	fetches := 0
	clock := clockwork.NewFakeClock()
	provider := &DOProvider{
		clusterID: "pizza-cluster",
		dir:       t.TempDir(),
		clock:     clock,
		fetch: func(ctx context.Context) ([]byte, error) {
			fetches++
			return []byte("apiVersion: v1\nkind: Config\n"), nil
		},
	}

	path, err := provider.Kubeconfig(context.TODO())
	assert.Nil(t, err)
	assert.NotEmpty(t, path)
	assert.Equal(t, 1, fetches)

	_, err = provider.Kubeconfig(context.TODO())
	assert.Nil(t, err)
	assert.Equal(t, 1, fetches, "kubeconfig is cached")

	clock.Advance(2 * time.Hour)
	_, err = provider.Kubeconfig(context.TODO())
	assert.Nil(t, err)
	assert.Equal(t, 2, fetches, "kubeconfig is refetched after its ttl")
}
