package trivy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sami-chanane/thesis-pizza-app/pkg/execs"
)

// Scanner shells out to trivy, the scanner itself is a black box
type Scanner struct {
	runner execs.Runner
	binary string
}

type Options struct {
	// Severity is the comma separated list of severities that fail the scan
	Severity      string
	IgnoreUnfixed bool
	// Env carries registry credentials for image scans,
	// TRIVY_USERNAME and TRIVY_PASSWORD entries
	Env []string
}

// Summary is the typed verdict of a scan
type Summary struct {
	BySeverity map[string]int `json:"bySeverity"`
	Total      int            `json:"total"`
	Failed     bool           `json:"failed"`
}

// Desc renders the one line verdict, "1 CRITICAL, 3 HIGH" style
func (s *Summary) Desc() string {
	if s.Total == 0 {
		return "no findings"
	}

	severities := []string{}
	for severity := range s.BySeverity {
		severities = append(severities, severity)
	}
	sort.Strings(severities)

	parts := []string{}
	for _, severity := range severities {
		parts = append(parts, fmt.Sprintf("%d %s", s.BySeverity[severity], severity))
	}
	return strings.Join(parts, ", ")
}

func NewScanner(runner execs.Runner, binary string) *Scanner {
	if binary == "" {
		binary = "trivy"
	}
	return &Scanner{
		runner: runner,
		binary: binary,
	}
}

// FilesystemScan scans a source tree
func (s *Scanner) FilesystemScan(ctx context.Context, dir string, opts Options) (*Summary, []byte, error) {
	return s.scan(ctx, "fs", dir, opts)
}

// ImageScan scans a pushed image by reference, a registry round trip
func (s *Scanner) ImageScan(ctx context.Context, imageRef string, opts Options) (*Summary, []byte, error) {
	return s.scan(ctx, "image", imageRef, opts)
}

func (s *Scanner) scan(ctx context.Context, subcommand string, target string, opts Options) (*Summary, []byte, error) {
	if _, err := s.runner.LookPath(s.binary); err != nil {
		return nil, nil, err
	}

	jsonReport, err := s.runner.Output(ctx, execs.Command{
		Name: s.binary,
		Args: s.args(subcommand, target, "json", opts),
		Env:  opts.Env,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("cannot scan %s: %s", target, err)
	}

	summary, err := summarize(jsonReport)
	if err != nil {
		return nil, nil, err
	}

	sarifReport, err := s.runner.Output(ctx, execs.Command{
		Name: s.binary,
		Args: s.args(subcommand, target, "sarif", opts),
		Env:  opts.Env,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("cannot scan %s: %s", target, err)
	}

	return summary, sarifReport, nil
}

// The verdict comes from the parsed report, not from trivy's exit code,
// so the stage description can name the findings.
func (s *Scanner) args(subcommand string, target string, format string, opts Options) []string {
	args := []string{subcommand, "--format", format, "--no-progress", "--exit-code", "0"}
	if opts.Severity != "" {
		args = append(args, "--severity", opts.Severity)
	}
	if opts.IgnoreUnfixed {
		args = append(args, "--ignore-unfixed")
	}
	return append(args, target)
}

type report struct {
	Results []result `json:"Results"`
}

type result struct {
	Target          string          `json:"Target"`
	Vulnerabilities []vulnerability `json:"Vulnerabilities"`
}

type vulnerability struct {
	VulnerabilityID string `json:"VulnerabilityID"`
	PkgName         string `json:"PkgName"`
	Severity        string `json:"Severity"`
	FixedVersion    string `json:"FixedVersion"`
}

func summarize(jsonReport []byte) (*Summary, error) {
	var parsed report
	err := json.Unmarshal(jsonReport, &parsed)
	if err != nil {
		return nil, fmt.Errorf("cannot parse scan report %s", err)
	}

	summary := &Summary{BySeverity: map[string]int{}}
	for _, result := range parsed.Results {
		for _, vulnerability := range result.Vulnerabilities {
			summary.BySeverity[vulnerability.Severity]++
			summary.Total++
		}
	}
	summary.Failed = summary.Total > 0

	return summary, nil
}
