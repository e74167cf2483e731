package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/execs"
	"github.com/sami-chanane/thesis-pizza-app/pkg/registry"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
)

const pushAttempts = 4

// BuildPushStage builds the release image for every configured platform
// and pushes it. Multi platform builds go through buildx, the engine API
// cannot assemble a manifest list.
type BuildPushStage struct {
	client registry.Client
	runner execs.Runner
	docker string
	auth   registry.Auth
}

func NewBuildPushStage(client registry.Client, execRunner execs.Runner, docker string, auth registry.Auth) *BuildPushStage {
	if docker == "" {
		docker = "docker"
	}
	return &BuildPushStage{
		client: client,
		runner: execRunner,
		docker: docker,
		auth:   auth,
	}
}

func (s *BuildPushStage) ID() delivery.StageID {
	return delivery.StageBuildPush
}

func (s *BuildPushStage) Run(ctx context.Context, runCtx *runner.Context) error {
	out := runCtx.LogWriter(s.ID())
	defer out.Close()

	if _, err := s.runner.LookPath(s.docker); err != nil {
		return err
	}

	tag, err := runCtx.Trigger.ImageTag()
	if err != nil {
		return err
	}
	image := &delivery.ImageRef{
		Registry:   s.auth.Host,
		Repository: s.auth.Repository,
		Name:       runCtx.Settings.App,
		Tag:        tag,
	}

	err = s.client.Login(ctx)
	if err != nil {
		return err
	}

	configDir, err := os.MkdirTemp("", "pizza-docker")
	if err != nil {
		return fmt.Errorf("cannot create the docker config folder %s", err)
	}
	defer os.RemoveAll(configDir)
	if s.auth.HasCredentials() {
		_, err = registry.WriteDockerConfig(configDir, s.auth.Host, s.auth.User, s.auth.Pass)
		if err != nil {
			return err
		}
	}

	metadataFile := filepath.Join(configDir, "metadata.json")
	digest, err := s.buildAndPush(ctx, runCtx, image, configDir, metadataFile, out)
	if err != nil {
		return err
	}

	image.Digest = digest
	runCtx.Image = image
	fmt.Fprintf(out, "pushed %s\n", image.String())
	fmt.Fprintf(out, "digest %s\n", digest)
	runCtx.SetSummary(s.ID(), map[string]interface{}{
		"image":  image.String(),
		"digest": digest,
	})
	return nil
}

// buildAndPush retries transient push failures, a re-push of the
// same tag is idempotent
func (s *BuildPushStage) buildAndPush(
	ctx context.Context,
	runCtx *runner.Context,
	image *delivery.ImageRef,
	configDir string,
	metadataFile string,
	out io.Writer,
) (string, error) {
	command := execs.Command{
		Name: s.docker,
		Args: []string{
			"buildx", "build",
			"--platform", strings.Join(runCtx.Settings.Build.Platforms, ","),
			"--target", runCtx.Settings.Build.FinalTarget,
			"--file", runCtx.Settings.Dockerfile,
			"--tag", image.String(),
			"--push",
			"--provenance=false",
			"--metadata-file", metadataFile,
			".",
		},
		Dir: runCtx.Workspace,
		Env: []string{"DOCKER_CONFIG=" + configDir},
	}

	err := backoff.Retry(func() error {
		err := s.runner.Run(ctx, command, out)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if err != nil {
			runCtx.Log.Warnf("build and push failed, retrying: %s", err)
		}
		return err
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), pushAttempts-1))
	if err != nil {
		return "", err
	}

	digest, err := digestFromMetadata(metadataFile)
	if err == nil {
		return digest, nil
	}
	runCtx.Log.Debugf("no digest in the build metadata, asking the registry: %s", err)

	return s.client.ResolveDigest(ctx, image.String())
}

// digestFromMetadata reads the pushed digest from the buildx metadata file
func digestFromMetadata(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read the build metadata %s", err)
	}

	var metadata struct {
		Digest string `json:"containerimage.digest"`
	}
	err = json.Unmarshal(content, &metadata)
	if err != nil {
		return "", fmt.Errorf("cannot parse the build metadata %s", err)
	}
	if metadata.Digest == "" {
		return "", fmt.Errorf("the build metadata holds no digest")
	}
	return metadata.Digest, nil
}
