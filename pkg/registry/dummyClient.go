package registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// DummyClient plays back scripted engine responses in tests
type DummyClient struct {
	mutex sync.Mutex

	LoginErr   error
	BuildErr   error
	BuildLog   string
	Digest     string
	DigestErr  error
	Files      map[string]string
	ExtractErr error

	Builds        []BuildOptions
	LoggedIn      bool
	RemovedImages []string
	ExtractCalls  [][]string
	PruneCalls    int
}

func NewDummyClient() *DummyClient {
	return &DummyClient{
		Files: map[string]string{},
	}
}

func (c *DummyClient) Login(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.LoggedIn = true
	return c.LoginErr
}

func (c *DummyClient) BuildImage(ctx context.Context, opts BuildOptions, out io.Writer) error {
	c.mutex.Lock()
	c.Builds = append(c.Builds, opts)
	c.mutex.Unlock()

	if c.BuildLog != "" {
		out.Write([]byte(c.BuildLog))
	}
	return c.BuildErr
}

func (c *DummyClient) ExtractFiles(ctx context.Context, imageRef string, paths []string, destDir string) ([]string, error) {
	c.mutex.Lock()
	c.ExtractCalls = append(c.ExtractCalls, paths)
	c.mutex.Unlock()

	if c.ExtractErr != nil {
		return nil, c.ExtractErr
	}

	extracted := []string{}
	for _, path := range paths {
		content, ok := c.Files[path]
		if !ok {
			continue
		}
		name := filepath.Base(path)
		err := os.WriteFile(filepath.Join(destDir, name), []byte(content), 0644)
		if err != nil {
			return extracted, err
		}
		extracted = append(extracted, name)
	}
	return extracted, nil
}

func (c *DummyClient) ResolveDigest(ctx context.Context, imageRef string) (string, error) {
	if c.DigestErr != nil {
		return "", c.DigestErr
	}
	if c.Digest == "" {
		return "", fmt.Errorf("cannot resolve digest of %s: not pushed", imageRef)
	}
	return c.Digest, nil
}

func (c *DummyClient) RemoveImage(ctx context.Context, imageRef string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.RemovedImages = append(c.RemovedImages, imageRef)
	return nil
}

func (c *DummyClient) Prune(ctx context.Context) (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.PruneCalls++
	return 0, nil
}
