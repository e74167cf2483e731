package kube

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderRegexp = regexp.MustCompile(`<[A-Z][A-Z_]*>`)

// Substitute fills the placeholder tokens of a deploy manifest.
// Plain text replacement on every occurrence, the manifest is not parsed here.
func Substitute(manifest string, image string, deploymentName string) (string, error) {
	substituted := strings.ReplaceAll(manifest, "<IMAGE>", image)
	substituted = strings.ReplaceAll(substituted, "<DEPLOYMENT_NAME>", deploymentName)

	if leftovers := placeholderRegexp.FindAllString(substituted, -1); len(leftovers) > 0 {
		return "", fmt.Errorf("unresolved placeholders in manifest: %s", strings.Join(unique(leftovers), ", "))
	}

	return substituted, nil
}

func unique(items []string) []string {
	seen := map[string]bool{}
	result := []string{}
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		result = append(result, item)
	}
	sort.Strings(result)
	return result
}
