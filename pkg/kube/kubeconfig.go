package kube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/digitalocean/godo"
	"github.com/jonboulle/clockwork"
)

// KubeconfigProvider hands out a kubeconfig path for the target cluster
type KubeconfigProvider interface {
	Kubeconfig(ctx context.Context) (string, error)
}

// StaticProvider serves a kubeconfig file from disk
type StaticProvider struct {
	path string
}

func NewStaticProvider(path string) *StaticProvider {
	return &StaticProvider{path: path}
}

func (p *StaticProvider) Kubeconfig(ctx context.Context) (string, error) {
	if p.path == "" {
		return "", fmt.Errorf("kubeconfig path is not configured")
	}
	if _, err := os.Stat(p.path); err != nil {
		return "", fmt.Errorf("cannot read kubeconfig %s: %s", p.path, err)
	}
	return p.path, nil
}

// DOProvider fetches a short lived kubeconfig for a DigitalOcean
// managed cluster and caches it on disk for an hour.
type DOProvider struct {
	clusterID string
	dir       string
	fetch     func(ctx context.Context) ([]byte, error)
	clock     clockwork.Clock

	mutex   sync.Mutex
	path    string
	fetched time.Time
}

const doKubeconfigTTL = time.Hour

func NewDOProvider(apiToken string, clusterID string, dir string) *DOProvider {
	client := godo.NewFromToken(apiToken)
	return &DOProvider{
		clusterID: clusterID,
		dir:       dir,
		fetch: func(ctx context.Context) ([]byte, error) {
			config, _, err := client.Kubernetes.GetKubeConfig(ctx, clusterID)
			if err != nil {
				return nil, err
			}
			return config.KubeconfigYAML, nil
		},
		clock: clockwork.NewRealClock(),
	}
}

func (p *DOProvider) Kubeconfig(ctx context.Context) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.path != "" && p.clock.Since(p.fetched) < doKubeconfigTTL {
		return p.path, nil
	}

	kubeconfigYAML, err := p.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot fetch kubeconfig for cluster %s: %s", p.clusterID, err)
	}

	path := filepath.Join(p.dir, "kubeconfig-"+p.clusterID)
	err = os.WriteFile(path, kubeconfigYAML, 0600)
	if err != nil {
		return "", fmt.Errorf("cannot write kubeconfig %s", err)
	}

	p.path = path
	p.fetched = p.clock.Now()
	return path, nil
}
