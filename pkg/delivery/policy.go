package delivery

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
)

// Validate reports the settings errors the schema cannot express,
// dead policies and malformed glob patterns among them. All of them
// in one pass, not just the first.
func (s *Settings) Validate() error {
	var result *multierror.Error

	if s.Deploy != nil && s.Deploy.Manifest == "" {
		result = multierror.Append(result, fmt.Errorf("deploy.manifest is mandatory when deploy is configured"))
	}

	for i, policy := range s.Policies {
		if policy.Branch == "" && policy.Tag == "" && policy.Event == nil {
			result = multierror.Append(result, fmt.Errorf("policy %d matches nothing, set branch, tag or event", i))
			continue
		}
		if policy.Branch != "" && policy.Tag != "" {
			result = multierror.Append(result, fmt.Errorf("policy %d sets both branch and tag, use two policies", i))
		}
		if policy.Branch != "" &&
			(policy.Event == nil || *policy.Event != Push && *policy.Event != PR) {
			result = multierror.Append(result, fmt.Errorf("policy %d filters on a branch, its event must be push or pr", i))
		}
		if policy.Tag != "" &&
			(policy.Event == nil || *policy.Event != Tag) {
			result = multierror.Append(result, fmt.Errorf("policy %d filters on a tag, its event must be tag", i))
		}
		if policy.Branch != "" {
			if _, err := glob.Compile(strings.TrimPrefix(policy.Branch, "!")); err != nil {
				result = multierror.Append(result, fmt.Errorf("policy %d branch pattern: %s", i, err))
			}
		}
		if policy.Tag != "" {
			if _, err := glob.Compile(strings.TrimPrefix(policy.Tag, "!")); err != nil {
				result = multierror.Append(result, fmt.Errorf("policy %d tag pattern: %s", i, err))
			}
		}
	}

	return result.ErrorOrNil()
}

// TriggerMatches tells if any of the configured policies allow a run for this trigger
func (s *Settings) TriggerMatches(t *Trigger) bool {
	for _, policy := range s.Policies {
		if policyMatches(&policy, t) {
			return true
		}
	}
	return false
}

func policyMatches(policy *Policy, t *Trigger) bool {
	if policy.Branch == "" &&
		policy.Event == nil &&
		policy.Tag == "" {
		return false
	}

	if policy.Branch != "" &&
		(policy.Event == nil || *policy.Event != *PushPtr() && *policy.Event != *PRPtr()) {
		return false
	}

	if policy.Tag != "" &&
		(policy.Event == nil || *policy.Event != *TagPtr()) {
		return false
	}

	if policy.Tag != "" {
		negate := false
		tag := policy.Tag
		if strings.HasPrefix(policy.Tag, "!") {
			negate = true
			tag = policy.Tag[1:]
		}
		g := glob.MustCompile(tag)

		exactMatch := tag == t.Tag
		patternMatch := g.Match(t.Tag)

		match := exactMatch || patternMatch

		if negate && match {
			return false
		}
		if !negate && !match {
			return false
		}
	}

	if policy.Branch != "" {
		negate := false
		branch := policy.Branch
		if strings.HasPrefix(policy.Branch, "!") {
			negate = true
			branch = policy.Branch[1:]
		}
		g := glob.MustCompile(branch)

		exactMatch := branch == t.Branch
		patternMatch := g.Match(t.Branch)

		match := exactMatch || patternMatch

		if negate && match {
			return false
		}
		if !negate && !match {
			return false
		}
	}

	if policy.Event != nil {
		if *policy.Event != t.Event {
			return false
		}
	}

	return true
}
