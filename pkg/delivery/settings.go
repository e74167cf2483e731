package delivery

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"sigs.k8s.io/yaml"
)

const DefaultSettingsFile = ".pizza.yaml"

// Settings is the per repository pipeline settings file, .pizza.yaml.
// Every field has a default, an empty file is a valid pipeline.
type Settings struct {
	App        string    `yaml:"app" json:"app"`
	Dockerfile string    `yaml:"dockerfile,omitempty" json:"dockerfile,omitempty"`
	Build      Build     `yaml:"build,omitempty" json:"build,omitempty"`
	Artifacts  Artifacts `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Scan       Scan      `yaml:"scan,omitempty" json:"scan,omitempty"`
	Deploy     *Deploy   `yaml:"deploy,omitempty" json:"deploy,omitempty"`
	Policies   []Policy  `yaml:"policies,omitempty" json:"policies,omitempty"`
}

type Build struct {
	// TestTarget is the Dockerfile stage that runs the tests and carries the reports
	TestTarget string `yaml:"testTarget,omitempty" json:"testTarget,omitempty"`
	// FinalTarget is the Dockerfile stage that gets pushed and deployed
	FinalTarget string   `yaml:"finalTarget,omitempty" json:"finalTarget,omitempty"`
	Platforms   []string `yaml:"platforms,omitempty" json:"platforms,omitempty"`
}

type Artifacts struct {
	Collect *bool    `yaml:"collect,omitempty" json:"collect,omitempty"`
	Paths   []string `yaml:"paths,omitempty" json:"paths,omitempty"`
}

type Scan struct {
	Severity      string `yaml:"severity,omitempty" json:"severity,omitempty"`
	IgnoreUnfixed bool   `yaml:"ignoreUnfixed,omitempty" json:"ignoreUnfixed,omitempty"`
}

type Deploy struct {
	Manifest       string `yaml:"manifest" json:"manifest"`
	DeploymentName string `yaml:"deploymentName,omitempty" json:"deploymentName,omitempty"`
	Namespace      string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	RolloutTimeout int    `yaml:"rolloutTimeoutSeconds,omitempty" json:"rolloutTimeoutSeconds,omitempty"`
	AutoRollback   *bool  `yaml:"autoRollback,omitempty" json:"autoRollback,omitempty"`
}

// Policy tells which triggers start a pipeline run.
// Branch and tag fields take globs, a ! prefix negates the pattern.
type Policy struct {
	Branch string    `yaml:"branch,omitempty" json:"branch,omitempty"`
	Tag    string    `yaml:"tag,omitempty" json:"tag,omitempty"`
	Event  *GitEvent `yaml:"event,omitempty" json:"event,omitempty"`
}

// LoadSettings parses a .pizza.yaml file and applies the defaults
func LoadSettings(raw []byte) (*Settings, error) {
	var settings Settings
	err := yaml.Unmarshal(raw, &settings)
	if err != nil {
		return nil, fmt.Errorf("cannot parse settings %s", err)
	}

	settings.applyDefaults()
	return &settings, nil
}

func (s *Settings) applyDefaults() {
	if s.App == "" {
		s.App = "pizza-app"
	}
	if s.Dockerfile == "" {
		s.Dockerfile = "Dockerfile"
	}
	if s.Build.TestTarget == "" {
		s.Build.TestTarget = "test-report"
	}
	if s.Build.FinalTarget == "" {
		s.Build.FinalTarget = "final-stage"
	}
	if len(s.Build.Platforms) == 0 {
		s.Build.Platforms = []string{"linux/amd64", "linux/arm64"}
	}
	if s.Artifacts.Collect == nil {
		collect := true
		s.Artifacts.Collect = &collect
	}
	if len(s.Artifacts.Paths) == 0 {
		s.Artifacts.Paths = []string{"coverage.out", "report.txt"}
	}
	if s.Scan.Severity == "" {
		s.Scan.Severity = "HIGH,CRITICAL"
	}
	if s.Deploy != nil {
		if s.Deploy.DeploymentName == "" {
			s.Deploy.DeploymentName = s.App
		}
		if s.Deploy.Namespace == "" {
			s.Deploy.Namespace = "default"
		}
		if s.Deploy.RolloutTimeout == 0 {
			s.Deploy.RolloutTimeout = 180
		}
		if s.Deploy.AutoRollback == nil {
			rollback := true
			s.Deploy.AutoRollback = &rollback
		}
	}
	if len(s.Policies) == 0 {
		s.Policies = []Policy{
			{Branch: "main", Event: PushPtr()},
			{Tag: "v*", Event: TagPtr()},
		}
	}
}

// ResolveVars templates the settings with the trigger variables.
// Deployment name and namespace can reference the branch for preview style deploys.
func (s *Settings) ResolveVars(vars map[string]string) error {
	policiesBkp := s.Policies
	s.Policies = nil // policies hold glob patterns, not resolving them
	settingsString, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("cannot marshal settings %s", err.Error())
	}

	functions := make(map[string]interface{})
	for k, v := range sprig.GenericFuncMap() {
		functions[k] = v
	}
	functions["sanitizeDNSName"] = sanitizeDNSName
	tpl, err := template.New("").
		Option("missingkey=error").
		Funcs(functions).
		Parse(string(settingsString))
	if err != nil {
		return err
	}

	var templated bytes.Buffer
	err = tpl.Execute(&templated, vars)
	if err != nil {
		return err
	}

	err = yaml.Unmarshal(templated.Bytes(), s)
	s.Policies = policiesBkp // restoring policies after vars are resolved
	return err
}

// Vars returns the template variables of a trigger
func Vars(t *Trigger) map[string]string {
	return map[string]string{
		"REPO":   t.Repo,
		"SHA":    t.SHA,
		"BRANCH": t.Branch,
		"TAG":    t.Tag,
		"EVENT":  t.Event.String(),
	}
}

// adheres to the Kubernetes resource name spec:
// a lowercase RFC 1123 label must consist of lower case alphanumeric characters or '-',
// and must start and end with an alphanumeric character
// (e.g. 'my-name',  or '123-abc', regex used for validation is '[a-z0-9]([-a-z0-9]*[a-z0-9])?')
func sanitizeDNSName(str string) string {
	str = strings.ToLower(str)
	r := regexp.MustCompile("[^0-9a-z]+")
	str = r.ReplaceAllString(str, "-")
	if len(str) > 53 {
		str = str[0:53]
	}
	str = strings.TrimSuffix(str, "-")
	str = strings.TrimPrefix(str, "-")
	return str
}
