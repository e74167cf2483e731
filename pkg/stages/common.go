package stages

import (
	"fmt"
	"io"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
	"github.com/sami-chanane/thesis-pizza-app/pkg/sarif"
)

// uploadReport ships a SARIF report to the security sink. The sink is best
// effort: an upload failure is a warning, the scan verdict decides the stage.
func uploadReport(runCtx *runner.Context, sink *sarif.Sink, raw []byte, out io.Writer) {
	if sink == nil {
		return
	}

	tool := "trivy"
	if report, err := sarif.Parse(raw); err == nil && report.ToolName() != "" {
		tool = report.ToolName()
	}

	ref := "refs/heads/" + runCtx.Trigger.Branch
	if runCtx.Trigger.Event == delivery.Tag {
		ref = "refs/tags/" + runCtx.Trigger.Tag
	}

	err := sink.Upload(raw, runCtx.Trigger.SHA, ref, tool)
	if err != nil {
		runCtx.Log.Warnf("cannot upload the scan report: %s", err)
		fmt.Fprintf(out, "report upload failed: %s\n", err)
		return
	}
	fmt.Fprintln(out, "report uploaded to the security sink")
}

func contains(items []string, item string) bool {
	for _, i := range items {
		if i == item {
			return true
		}
	}
	return false
}
