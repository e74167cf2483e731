package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/execs"
	"github.com/sami-chanane/thesis-pizza-app/pkg/gitrepo"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
)

// LintStage runs golangci-lint over the packages the commit touched
type LintStage struct {
	runner execs.Runner
	binary string
}

func NewLintStage(execRunner execs.Runner, binary string) *LintStage {
	if binary == "" {
		binary = "golangci-lint"
	}
	return &LintStage{
		runner: execRunner,
		binary: binary,
	}
}

func (s *LintStage) ID() delivery.StageID {
	return delivery.StageLint
}

func (s *LintStage) Run(ctx context.Context, runCtx *runner.Context) error {
	out := runCtx.LogWriter(s.ID())
	defer out.Close()

	if _, err := s.runner.LookPath(s.binary); err != nil {
		return fmt.Errorf("%s, install it from https://golangci-lint.run", err)
	}

	var targets []string
	changed, err := gitrepo.ChangedFiles(runCtx.Workspace, runCtx.Trigger.SHA)
	if err != nil {
		// linting everything beats guessing on merge or grafted history
		runCtx.Log.Debugf("cannot determine the changed files, linting everything: %s", err)
		targets = []string{"./..."}
	} else {
		targets = lintTargets(changed)
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "no Go changes, nothing to lint")
		runCtx.SetSummary(s.ID(), map[string]interface{}{"lintedPackages": 0})
		return nil
	}

	err = s.runner.Run(ctx, execs.Command{
		Name: s.binary,
		Args: append([]string{"run", "--timeout", "8m"}, targets...),
		Dir:  runCtx.Workspace,
	}, out)
	if err != nil {
		return err
	}

	runCtx.SetSummary(s.ID(), map[string]interface{}{"lintedPackages": len(targets)})
	return nil
}

// lintTargets maps the changed files to the packages holding them
func lintTargets(changed []string) []string {
	packages := map[string]bool{}
	for _, file := range changed {
		if !strings.HasSuffix(file, ".go") {
			continue
		}
		dir := filepath.ToSlash(filepath.Dir(file))
		if dir == "." {
			packages["."] = true
		} else {
			packages["./"+dir] = true
		}
	}

	targets := []string{}
	for pkg := range packages {
		targets = append(targets, pkg)
	}
	sort.Strings(targets)
	return targets
}
