package stages

import (
	"context"
	"fmt"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
	"github.com/sami-chanane/thesis-pizza-app/pkg/sarif"
	"github.com/sami-chanane/thesis-pizza-app/pkg/trivy"
)

// RepoScanStage scans the source tree for known vulnerabilities,
// lockfiles and config files included
type RepoScanStage struct {
	scanner *trivy.Scanner
	sink    *sarif.Sink
}

func NewRepoScanStage(scanner *trivy.Scanner, sink *sarif.Sink) *RepoScanStage {
	return &RepoScanStage{
		scanner: scanner,
		sink:    sink,
	}
}

func (s *RepoScanStage) ID() delivery.StageID {
	return delivery.StageRepoScan
}

func (s *RepoScanStage) Run(ctx context.Context, runCtx *runner.Context) error {
	out := runCtx.LogWriter(s.ID())
	defer out.Close()

	summary, sarifReport, err := s.scanner.FilesystemScan(ctx, runCtx.Workspace, trivy.Options{
		Severity:      runCtx.Settings.Scan.Severity,
		IgnoreUnfixed: runCtx.Settings.Scan.IgnoreUnfixed,
	})
	if err != nil {
		return err
	}

	err = runCtx.SaveArtifact(s.ID(), "repo-scan.sarif", sarifReport)
	if err != nil {
		runCtx.Log.Warnf("cannot save the scan report: %s", err)
	}
	uploadReport(runCtx, s.sink, sarifReport, out)

	fmt.Fprintf(out, "scan verdict: %s\n", summary.Desc())
	runCtx.SetSummary(s.ID(), map[string]interface{}{
		"bySeverity": summary.BySeverity,
		"total":      summary.Total,
	})

	if summary.Failed {
		return fmt.Errorf("vulnerabilities found: %s", summary.Desc())
	}
	return nil
}
