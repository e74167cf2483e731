package registry

import (
	"archive/tar"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
)

// Client talks to the container engine API.
// Image builds for the test stage run here, the multi platform
// release build shells out to buildx instead.
type Client interface {
	Login(ctx context.Context) error
	BuildImage(ctx context.Context, opts BuildOptions, out io.Writer) error
	ExtractFiles(ctx context.Context, imageRef string, paths []string, destDir string) ([]string, error)
	ResolveDigest(ctx context.Context, imageRef string) (string, error)
	RemoveImage(ctx context.Context, imageRef string) error
	Prune(ctx context.Context) (uint64, error)
}

type BuildOptions struct {
	ContextDir string
	Dockerfile string
	Target     string
	Tag        string
	Labels     map[string]string
}

type LiveClient struct {
	apiClient    *client.Client
	registryHost string
	authConfig   *registry.AuthConfig
	registryAuth *string
}

func NewClient(registryHost string, registryUser *string, registryPass *string) (*LiveClient, error) {
	apiClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("error creating Docker client: %w", err)
	}

	return NewClientWithAPIClient(apiClient, registryHost, registryUser, registryPass)
}

func NewClientWithAPIClient(apiClient *client.Client, registryHost string, registryUser *string, registryPass *string) (*LiveClient, error) {
	if registryUser == nil || registryPass == nil {
		return &LiveClient{apiClient: apiClient, registryHost: registryHost}, nil
	}

	authConfig := registry.AuthConfig{
		Username:      *registryUser,
		Password:      *registryPass,
		ServerAddress: registryHost,
	}
	jsonBytes, err := json.Marshal(authConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth config: %w", err)
	}
	registryAuth := base64.StdEncoding.EncodeToString(jsonBytes)

	return &LiveClient{
		apiClient:    apiClient,
		registryHost: registryHost,
		authConfig:   &authConfig,
		registryAuth: &registryAuth,
	}, nil
}

// Login validates the configured registry credentials against the registry
func (c *LiveClient) Login(ctx context.Context) error {
	if c.authConfig == nil {
		return nil
	}

	_, err := c.apiClient.RegistryLogin(ctx, *c.authConfig)
	if err != nil {
		return fmt.Errorf("cannot log in to %s: %w", c.registryHost, err)
	}
	return nil
}

// BuildImage builds a Dockerfile target over the engine API and
// streams the build output. A failing RUN step fails the build.
func (c *LiveClient) BuildImage(ctx context.Context, opts BuildOptions, out io.Writer) error {
	buildContext, err := archive.TarWithOptions(opts.ContextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("cannot tar the build context: %w", err)
	}
	defer buildContext.Close()

	buildOptions := types.ImageBuildOptions{
		Dockerfile:  opts.Dockerfile,
		Target:      opts.Target,
		Tags:        []string{opts.Tag},
		Labels:      opts.Labels,
		Remove:      true,
		ForceRemove: true,
	}
	if c.authConfig != nil {
		buildOptions.AuthConfigs = map[string]registry.AuthConfig{
			c.registryHost: *c.authConfig,
		}
	}

	response, err := c.apiClient.ImageBuild(ctx, buildContext, buildOptions)
	if err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	defer response.Body.Close()

	dec := json.NewDecoder(response.Body)
	for {
		var message buildMessage
		if err := dec.Decode(&message); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to decode image build response: %w", err)
		}
		if message.Stream != "" {
			out.Write([]byte(message.Stream))
		}
		if message.Status != "" {
			out.Write([]byte(message.Status + "\n"))
		}
		if message.Error != "" {
			return fmt.Errorf("build failed: %s", message.Error)
		}
	}

	return nil
}

type buildMessage struct {
	Stream      string `json:"stream"`
	Status      string `json:"status"`
	Error       string `json:"error"`
	ErrorDetail *struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

// ExtractFiles copies files out of an image without running it.
// Missing files are skipped, the returned list names what was found.
func (c *LiveClient) ExtractFiles(ctx context.Context, imageRef string, paths []string, destDir string) ([]string, error) {
	conf := container.Config{
		Image: imageRef,
	}
	extractContainer, err := c.apiClient.ContainerCreate(ctx, &conf, nil, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	defer c.apiClient.ContainerRemove(ctx, extractContainer.ID, container.RemoveOptions{
		RemoveVolumes: true,
		Force:         true,
	})

	extracted := []string{}
	for _, path := range paths {
		reader, _, err := c.apiClient.CopyFromContainer(ctx, extractContainer.ID, path)
		if err != nil {
			if errdefs.IsNotFound(err) {
				continue
			}
			return extracted, fmt.Errorf("failed to copy %s: %w", path, err)
		}

		err = writeFirstTarEntry(reader, destDir)
		reader.Close()
		if err != nil {
			return extracted, fmt.Errorf("failed to extract %s: %w", path, err)
		}
		extracted = append(extracted, filepath.Base(path))
	}

	return extracted, nil
}

// CopyFromContainer hands back a tar stream holding the requested path
func writeFirstTarEntry(reader io.Reader, destDir string) error {
	tarReader := tar.NewReader(reader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		file, err := os.Create(filepath.Join(destDir, filepath.Base(header.Name)))
		if err != nil {
			return err
		}
		_, err = io.Copy(file, tarReader)
		file.Close()
		if err != nil {
			return err
		}
	}
}

// ResolveDigest asks the registry for the manifest digest of a pushed reference
func (c *LiveClient) ResolveDigest(ctx context.Context, imageRef string) (string, error) {
	encodedAuth := ""
	if c.registryAuth != nil {
		encodedAuth = *c.registryAuth
	}

	inspect, err := c.apiClient.DistributionInspect(ctx, imageRef, encodedAuth)
	if err != nil {
		return "", fmt.Errorf("cannot resolve digest of %s: %w", imageRef, err)
	}
	return inspect.Descriptor.Digest.String(), nil
}

func (c *LiveClient) RemoveImage(ctx context.Context, imageRef string) error {
	_, err := c.apiClient.ImageRemove(ctx, imageRef, image.RemoveOptions{
		Force:         true,
		PruneChildren: true,
	})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

// Prune drops the dangling build cache and reports the bytes reclaimed.
// Test image builds leave a cache layer per commit behind.
func (c *LiveClient) Prune(ctx context.Context) (uint64, error) {
	report, err := c.apiClient.BuildCachePrune(ctx, types.BuildCachePruneOptions{})
	if err != nil {
		return 0, fmt.Errorf("cannot prune the build cache: %w", err)
	}
	return report.SpaceReclaimed, nil
}
