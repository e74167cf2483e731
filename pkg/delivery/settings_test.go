package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_loadSettingsDefaults(t *testing.T) {
	settings, err := LoadSettings([]byte(""))
	assert.Nil(t, err)
	assert.Equal(t, "pizza-app", settings.App)
	assert.Equal(t, "Dockerfile", settings.Dockerfile)
	assert.Equal(t, "test-report", settings.Build.TestTarget)
	assert.Equal(t, "final-stage", settings.Build.FinalTarget)
	assert.Equal(t, []string{"linux/amd64", "linux/arm64"}, settings.Build.Platforms)
	assert.True(t, *settings.Artifacts.Collect)
	assert.Equal(t, []string{"coverage.out", "report.txt"}, settings.Artifacts.Paths)
	assert.Equal(t, "HIGH,CRITICAL", settings.Scan.Severity)
	assert.Nil(t, settings.Deploy)
	assert.Equal(t, 2, len(settings.Policies))
}

func Test_loadSettingsDeployDefaults(t *testing.T) {
	settingsString := `
app: pizza-app
deploy:
  manifest: deploy/deployment.yaml
`
	settings, err := LoadSettings([]byte(settingsString))
	assert.Nil(t, err)
	assert.Equal(t, "pizza-app", settings.Deploy.DeploymentName)
	assert.Equal(t, "default", settings.Deploy.Namespace)
	assert.Equal(t, 180, settings.Deploy.RolloutTimeout)
	assert.True(t, *settings.Deploy.AutoRollback)
}

func Test_resolveVars(t *testing.T) {
	settingsString := `
app: pizza-app
deploy:
  manifest: deploy/deployment.yaml
  deploymentName: pizza-app-{{ .BRANCH | sanitizeDNSName }}
`
	settings, err := LoadSettings([]byte(settingsString))
	assert.Nil(t, err)

	err = settings.ResolveVars(map[string]string{
		"BRANCH": "feature/my-feature",
		"SHA":    "ea9ab6d8f0f20e2b6839d3fe9d6d8f955c516b72",
		"REPO":   "sami-chanane/pizza-app",
		"TAG":    "",
		"EVENT":  "push",
	})
	assert.Nil(t, err)
	assert.Equal(t, "pizza-app-feature-my-feature", settings.Deploy.DeploymentName)
}

func Test_resolveVarsKeepsPolicies(t *testing.T) {
	settingsString := `
app: pizza-app
policies:
  - branch: "feature/*"
    event: push
`
	settings, err := LoadSettings([]byte(settingsString))
	assert.Nil(t, err)

	err = settings.ResolveVars(Vars(&Trigger{
		Repo:   "sami-chanane/pizza-app",
		SHA:    "ea9ab6d8f0f20e2b6839d3fe9d6d8f955c516b72",
		Branch: "main",
		Event:  Push,
	}))
	assert.Nil(t, err)
	assert.Equal(t, "feature/*", settings.Policies[0].Branch)
}

func Test_lint(t *testing.T) {
	valid := `
app: pizza-app
build:
  platforms:
    - linux/amd64
scan:
  severity: HIGH,CRITICAL
deploy:
  manifest: deploy/deployment.yaml
`
	err := Lint([]byte(valid))
	assert.Nil(t, err)

	badSeverity := `
scan:
  severity: SEVERE
`
	err = Lint([]byte(badSeverity))
	assert.NotNil(t, err)

	badPlatform := `
build:
  platforms:
    - linux-amd64
`
	err = Lint([]byte(badPlatform))
	assert.NotNil(t, err)

	deployWithoutManifest := `
deploy:
  namespace: default
`
	err = Lint([]byte(deployWithoutManifest))
	assert.NotNil(t, err)

	unknownField := `
deployment:
  manifest: deploy/deployment.yaml
`
	err = Lint([]byte(unknownField))
	assert.NotNil(t, err)
}
