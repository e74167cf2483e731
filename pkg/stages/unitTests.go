package stages

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/registry"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
)

// UnitTestsStage builds the test target of the Dockerfile. The target runs
// go test as part of the build, a red test fails the image build. The
// coverage and test reports are then copied out of the built image.
type UnitTestsStage struct {
	client     registry.Client
	pruneCache bool
}

func NewUnitTestsStage(client registry.Client, pruneCache bool) *UnitTestsStage {
	return &UnitTestsStage{client: client, pruneCache: pruneCache}
}

func (s *UnitTestsStage) ID() delivery.StageID {
	return delivery.StageUnitTests
}

func (s *UnitTestsStage) Run(ctx context.Context, runCtx *runner.Context) error {
	out := runCtx.LogWriter(s.ID())
	defer out.Close()

	settings := runCtx.Settings
	testImage := fmt.Sprintf("%s-test:%s", settings.App, runCtx.Trigger.ShortSHA())

	err := s.client.BuildImage(ctx, registry.BuildOptions{
		ContextDir: runCtx.Workspace,
		Dockerfile: settings.Dockerfile,
		Target:     settings.Build.TestTarget,
		Tag:        testImage,
		Labels: map[string]string{
			"app": settings.App,
			"sha": runCtx.Trigger.SHA,
		},
	}, out)
	if err != nil {
		return err
	}
	defer func() {
		err := s.client.RemoveImage(context.Background(), testImage)
		if err != nil {
			runCtx.Log.Warnf("cannot remove the test image: %s", err)
		}
		if s.pruneCache {
			reclaimed, err := s.client.Prune(context.Background())
			if err != nil {
				runCtx.Log.Warnf("cannot prune the build cache: %s", err)
			} else if reclaimed > 0 {
				runCtx.Log.Debugf("build cache pruned, %d bytes reclaimed", reclaimed)
			}
		}
	}()

	if settings.Artifacts.Collect != nil && !*settings.Artifacts.Collect {
		fmt.Fprintln(out, "artifact collection is turned off")
		return nil
	}

	return s.collectReports(ctx, runCtx, testImage, out)
}

// collectReports copies the report files out of the test image.
// A report the image does not hold is a warning, not a failure.
func (s *UnitTestsStage) collectReports(ctx context.Context, runCtx *runner.Context, testImage string, out io.Writer) error {
	destDir, err := os.MkdirTemp("", "pizza-reports")
	if err != nil {
		return fmt.Errorf("cannot create the report folder %s", err)
	}
	defer os.RemoveAll(destDir)

	paths := []string{}
	for _, path := range runCtx.Settings.Artifacts.Paths {
		paths = append(paths, imagePath(path))
	}

	extracted, err := s.client.ExtractFiles(ctx, testImage, paths, destDir)
	if err != nil {
		return fmt.Errorf("cannot extract the reports: %s", err)
	}

	for _, name := range extracted {
		content, err := os.ReadFile(filepath.Join(destDir, name))
		if err != nil {
			return fmt.Errorf("cannot read %s: %s", name, err)
		}
		err = runCtx.SaveArtifact(s.ID(), name, content)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "collected %s\n", name)
	}

	for _, path := range runCtx.Settings.Artifacts.Paths {
		if !contains(extracted, filepath.Base(path)) {
			runCtx.Log.Warnf("the test image holds no %s", path)
			fmt.Fprintf(out, "warning: %s was not found in the test image\n", path)
		}
	}

	runCtx.SetSummary(s.ID(), map[string]interface{}{"artifacts": extracted})
	return nil
}

// imagePath resolves a report path inside the test image.
// Relative paths live in the conventional /app workdir.
func imagePath(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/app/" + path
}
