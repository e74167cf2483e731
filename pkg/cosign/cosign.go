package cosign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sami-chanane/thesis-pizza-app/pkg/execs"
)

// Signer shells out to cosign for keypair based image signing.
// Images are always signed by digest, a tag can be re-pointed, a digest cannot.
type Signer struct {
	runner  execs.Runner
	binary  string
	keyPath string
	pubPath string
}

func NewSigner(runner execs.Runner, binary string, keyPath string, pubPath string) *Signer {
	if binary == "" {
		binary = "cosign"
	}
	return &Signer{
		runner:  runner,
		binary:  binary,
		keyPath: keyPath,
		pubPath: pubPath,
	}
}

// Sign signs a digest pinned image reference with the private key.
// The key password travels in the environment, it never shows up in argv.
func (s *Signer) Sign(ctx context.Context, imageWithDigest string, out io.Writer) error {
	if _, err := s.runner.LookPath(s.binary); err != nil {
		return err
	}
	if s.keyPath == "" {
		return fmt.Errorf("signing key is not configured")
	}
	if !strings.Contains(imageWithDigest, "@sha256:") {
		return fmt.Errorf("refusing to sign %s, only digest pinned references are signed", imageWithDigest)
	}

	err := s.runner.Run(ctx, execs.Command{
		Name: s.binary,
		Args: []string{"sign", "--key", s.keyPath, "--yes", imageWithDigest},
		Env:  passwordEnv(),
	}, out)
	if err != nil {
		return fmt.Errorf("cannot sign %s: %s", imageWithDigest, err)
	}
	return nil
}

// Verify checks the signature with the public key and
// makes sure the signed subject is the digest we pushed.
func (s *Signer) Verify(ctx context.Context, imageWithDigest string, out io.Writer) error {
	if s.pubPath == "" {
		return fmt.Errorf("verification key is not configured")
	}

	digest := imageWithDigest[strings.LastIndex(imageWithDigest, "@")+1:]

	output, err := s.runner.Output(ctx, execs.Command{
		Name: s.binary,
		Args: []string{"verify", "--key", s.pubPath, "--output", "json", imageWithDigest},
	})
	if err != nil {
		return fmt.Errorf("cannot verify %s: %s", imageWithDigest, err)
	}
	out.Write(output)

	var signatures []signature
	err = json.Unmarshal(output, &signatures)
	if err != nil {
		return fmt.Errorf("cannot parse verify output %s", err)
	}
	if len(signatures) == 0 {
		return fmt.Errorf("no signature found for %s", imageWithDigest)
	}

	for _, sig := range signatures {
		if sig.Critical.Image.Digest == digest {
			return nil
		}
	}
	return fmt.Errorf("signature subject does not match %s", digest)
}

type signature struct {
	Critical critical `json:"critical"`
}

type critical struct {
	Identity identity `json:"identity"`
	Image    image    `json:"image"`
	Type     string   `json:"type"`
}

type identity struct {
	DockerReference string `json:"docker-reference"`
}

type image struct {
	Digest string `json:"docker-manifest-digest"`
}

func passwordEnv() []string {
	if password, ok := os.LookupEnv("COSIGN_PASSWORD"); ok {
		return []string{"COSIGN_PASSWORD=" + password}
	}
	return nil
}
