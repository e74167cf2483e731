package stages

import (
	"context"
	"fmt"

	"github.com/sami-chanane/thesis-pizza-app/pkg/cosign"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
)

// SignStage signs the pushed image by digest and verifies its own signature.
// A tag can be re-pointed after the push, the digest cannot.
type SignStage struct {
	signer *cosign.Signer
}

func NewSignStage(signer *cosign.Signer) *SignStage {
	return &SignStage{signer: signer}
}

func (s *SignStage) ID() delivery.StageID {
	return delivery.StageSign
}

func (s *SignStage) Run(ctx context.Context, runCtx *runner.Context) error {
	out := runCtx.LogWriter(s.ID())
	defer out.Close()

	if runCtx.Image == nil {
		return fmt.Errorf("no pushed image to sign")
	}
	imageWithDigest, err := runCtx.Image.WithDigest()
	if err != nil {
		return err
	}

	err = s.signer.Sign(ctx, imageWithDigest, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signed %s\n", imageWithDigest)

	err = s.signer.Verify(ctx, imageWithDigest, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "signature of %s verified\n", imageWithDigest)

	runCtx.SetSummary(s.ID(), map[string]interface{}{
		"signed":   imageWithDigest,
		"verified": true,
	})
	return nil
}
