package trivy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sami-chanane/thesis-pizza-app/pkg/execs"
)

const cleanReport = `{"SchemaVersion": 2, "Results": []}`

const findingsReport = `
{
  "SchemaVersion": 2,
  "Results": [
    {
      "Target": "pizza-app (alpine 3.19)",
      "Vulnerabilities": [
        {"VulnerabilityID": "CVE-2024-0001", "PkgName": "libcrypto3", "Severity": "CRITICAL", "FixedVersion": "3.1.4-r6"},
        {"VulnerabilityID": "CVE-2024-0002", "PkgName": "libssl3", "Severity": "HIGH"},
        {"VulnerabilityID": "CVE-2024-0003", "PkgName": "busybox", "Severity": "HIGH"}
      ]
    }
  ]
}
`

func Test_imageScan(t *testing.T) {
	runner := execs.NewDummyRunner()
	runner.Results["trivy"] = execs.DummyResult{Output: findingsReport}

	scanner := NewScanner(runner, "")
	summary, sarifReport, err := scanner.ImageScan(context.Background(), "registry.digitalocean.com/pizza-registry/pizza-app:ea9ab6d", Options{
		Severity:      "HIGH,CRITICAL",
		IgnoreUnfixed: true,
	})
	assert.Nil(t, err)
	assert.True(t, summary.Failed)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.BySeverity["CRITICAL"])
	assert.Equal(t, 2, summary.BySeverity["HIGH"])
	assert.Equal(t, "1 CRITICAL, 2 HIGH", summary.Desc())
	assert.NotEmpty(t, sarifReport)

	args := runner.ArgsOf("trivy")
	assert.Equal(t, "image", args[0])
	assert.Contains(t, args, "--severity")
	assert.Contains(t, args, "--ignore-unfixed")
	assert.Contains(t, args, "registry.digitalocean.com/pizza-registry/pizza-app:ea9ab6d")
}

func Test_filesystemScanClean(t *testing.T) {
	runner := execs.NewDummyRunner()
	runner.Results["trivy"] = execs.DummyResult{Output: cleanReport}

	scanner := NewScanner(runner, "")
	summary, _, err := scanner.FilesystemScan(context.Background(), "/workspace/pizza-app", Options{Severity: "HIGH,CRITICAL"})
	assert.Nil(t, err)
	assert.False(t, summary.Failed)
	assert.Equal(t, "no findings", summary.Desc())

	args := runner.ArgsOf("trivy")
	assert.Equal(t, "fs", args[0])
}

func Test_scanWithoutTrivyInstalled(t *testing.T) {
	runner := execs.NewDummyRunner()
	runner.MissingTools["trivy"] = true

	scanner := NewScanner(runner, "")
	_, _, err := scanner.FilesystemScan(context.Background(), "/workspace/pizza-app", Options{})
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "not installed")
}
