package sarif

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Report is the subset of the SARIF format the scanners emit.
// Enough to count findings and to feed the security sink.
type Report struct {
	Schema  string `json:"$schema,omitempty"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name           string `json:"name"`
	Version        string `json:"version,omitempty"`
	InformationUri string `json:"informationUri,omitempty"`
	Rules          []Rule `json:"rules,omitempty"`
}

type Rule struct {
	ID               string   `json:"id"`
	Name             string   `json:"name,omitempty"`
	ShortDescription *Message `json:"shortDescription,omitempty"`
	Help             *Message `json:"help,omitempty"`
}

type Result struct {
	RuleID    string     `json:"ruleId"`
	RuleIndex *int       `json:"ruleIndex,omitempty"`
	Level     string     `json:"level,omitempty"`
	Message   Message    `json:"message"`
	Locations []Location `json:"locations,omitempty"`
}

type Message struct {
	Text string `json:"text"`
}

type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

type ArtifactLocation struct {
	URI string `json:"uri"`
}

type Region struct {
	StartLine int `json:"startLine,omitempty"`
	EndLine   int `json:"endLine,omitempty"`
}

// Parse reads a SARIF document
func Parse(raw []byte) (*Report, error) {
	var report Report
	err := json.Unmarshal(raw, &report)
	if err != nil {
		return nil, fmt.Errorf("cannot parse sarif %s", err)
	}
	if report.Version == "" {
		return nil, fmt.Errorf("not a sarif document, version field is missing")
	}
	return &report, nil
}

// ResultCount counts the findings across all runs
func (r *Report) ResultCount() int {
	count := 0
	for _, run := range r.Runs {
		count += len(run.Results)
	}
	return count
}

// ToolName names the scanner that produced the report
func (r *Report) ToolName() string {
	names := []string{}
	for _, run := range r.Runs {
		if run.Tool.Driver.Name != "" {
			names = append(names, run.Tool.Driver.Name)
		}
	}
	if len(names) == 0 {
		return "unknown"
	}
	return strings.Join(names, ",")
}
