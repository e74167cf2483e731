package stages

import (
	"context"
	"fmt"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/registry"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
	"github.com/sami-chanane/thesis-pizza-app/pkg/sarif"
	"github.com/sami-chanane/thesis-pizza-app/pkg/trivy"
)

// ImageScanStage scans the pushed image by reference. Scanning what the
// registry serves, not the local build cache, catches a tampered push.
type ImageScanStage struct {
	scanner *trivy.Scanner
	sink    *sarif.Sink
	auth    registry.Auth
}

func NewImageScanStage(scanner *trivy.Scanner, sink *sarif.Sink, auth registry.Auth) *ImageScanStage {
	return &ImageScanStage{
		scanner: scanner,
		sink:    sink,
		auth:    auth,
	}
}

func (s *ImageScanStage) ID() delivery.StageID {
	return delivery.StageImageScan
}

func (s *ImageScanStage) Run(ctx context.Context, runCtx *runner.Context) error {
	out := runCtx.LogWriter(s.ID())
	defer out.Close()

	if runCtx.Image == nil {
		return fmt.Errorf("no pushed image to scan")
	}

	opts := trivy.Options{
		Severity:      runCtx.Settings.Scan.Severity,
		IgnoreUnfixed: runCtx.Settings.Scan.IgnoreUnfixed,
	}
	if s.auth.HasCredentials() {
		opts.Env = []string{
			"TRIVY_USERNAME=" + s.auth.User,
			"TRIVY_PASSWORD=" + s.auth.Pass,
		}
	}

	summary, sarifReport, err := s.scanner.ImageScan(ctx, runCtx.Image.String(), opts)
	if err != nil {
		return err
	}

	err = runCtx.SaveArtifact(s.ID(), "image-scan.sarif", sarifReport)
	if err != nil {
		runCtx.Log.Warnf("cannot save the scan report: %s", err)
	}
	uploadReport(runCtx, s.sink, sarifReport, out)

	fmt.Fprintf(out, "scan verdict for %s: %s\n", runCtx.Image.String(), summary.Desc())
	runCtx.SetSummary(s.ID(), map[string]interface{}{
		"image":      runCtx.Image.String(),
		"bySeverity": summary.BySeverity,
		"total":      summary.Total,
	})

	if summary.Failed {
		return fmt.Errorf("vulnerabilities found in %s: %s", runCtx.Image.String(), summary.Desc())
	}
	return nil
}
