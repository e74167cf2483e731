package delivery

import (
	"fmt"
	"regexp"
	"strings"
)

var digestRegexp = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// ImageRef is a fully qualified container image reference
// in the <registry>/<repository>/<name>:<tag> form.
type ImageRef struct {
	Registry   string `json:"registry"`
	Repository string `json:"repository"`
	Name       string `json:"name"`
	Tag        string `json:"tag"`
	Digest     string `json:"digest,omitempty"`
}

// ParseImageRef parses a <registry>/<repository>/<name>:<tag> reference.
// The registry part must look like a host: contain a dot or a port.
func ParseImageRef(ref string) (*ImageRef, error) {
	if strings.Contains(ref, "@") {
		return nil, fmt.Errorf("digest references are not parsed, got %s", ref)
	}

	tag := "latest"
	remainder := ref
	if idx := strings.LastIndex(ref, ":"); idx != -1 && !strings.Contains(ref[idx:], "/") {
		tag = ref[idx+1:]
		remainder = ref[:idx]
		if tag == "" {
			return nil, fmt.Errorf("empty tag in %s", ref)
		}
	}

	parts := strings.Split(remainder, "/")
	if len(parts) < 3 {
		return nil, fmt.Errorf("reference %s is not fully qualified, want <registry>/<repository>/<name>:<tag>", ref)
	}

	registry := parts[0]
	if !strings.ContainsAny(registry, ".:") {
		return nil, fmt.Errorf("registry part %s does not look like a host", registry)
	}

	return &ImageRef{
		Registry:   registry,
		Repository: strings.Join(parts[1:len(parts)-1], "/"),
		Name:       parts[len(parts)-1],
		Tag:        tag,
	}, nil
}

func (r *ImageRef) String() string {
	return fmt.Sprintf("%s/%s/%s:%s", r.Registry, r.Repository, r.Name, r.Tag)
}

// WithDigest renders the digest pinned form used for signing and deploys
func (r *ImageRef) WithDigest() (string, error) {
	if r.Digest == "" {
		return "", fmt.Errorf("image %s has no digest", r.String())
	}
	if !digestRegexp.MatchString(r.Digest) {
		return "", fmt.Errorf("digest %s is not a sha256 digest", r.Digest)
	}
	return fmt.Sprintf("%s/%s/%s@%s", r.Registry, r.Repository, r.Name, r.Digest), nil
}
