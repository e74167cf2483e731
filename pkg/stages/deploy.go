package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/kube"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
)

// deployTarget is the slice of the cluster client the stage needs
type deployTarget interface {
	CurrentImage(ctx context.Context, namespace string, name string) (string, error)
	Apply(ctx context.Context, namespace string, objects *kube.Objects) (int64, error)
	SetImage(ctx context.Context, namespace string, name string, image string) (int64, error)
	WaitForRollout(ctx context.Context, namespace string, name string, generation int64, timeout time.Duration) error
}

// DeployStage substitutes the deploy manifest, applies it and waits for
// the rollout. A failed rollout is rolled back to the previously running
// image when auto rollback is on, and the stage fails either way.
type DeployStage struct {
	kubeconfig kube.KubeconfigProvider
	connect    func(kubeconfigPath string) (deployTarget, error)
}

func NewDeployStage(kubeconfig kube.KubeconfigProvider) *DeployStage {
	return &DeployStage{
		kubeconfig: kubeconfig,
		connect: func(kubeconfigPath string) (deployTarget, error) {
			return kube.NewDeployer(kubeconfigPath)
		},
	}
}

func (s *DeployStage) ID() delivery.StageID {
	return delivery.StageDeploy
}

func (s *DeployStage) Run(ctx context.Context, runCtx *runner.Context) error {
	out := runCtx.LogWriter(s.ID())
	defer out.Close()

	deploySettings := runCtx.Settings.Deploy
	if deploySettings == nil {
		return fmt.Errorf("deploy is not configured")
	}
	if runCtx.Image == nil {
		return fmt.Errorf("no pushed image to deploy")
	}
	imageWithDigest, err := runCtx.Image.WithDigest()
	if err != nil {
		return err
	}

	manifest, err := os.ReadFile(filepath.Join(runCtx.Workspace, deploySettings.Manifest))
	if err != nil {
		return fmt.Errorf("cannot read the deploy manifest %s", err)
	}

	substituted, err := kube.Substitute(string(manifest), imageWithDigest, deploySettings.DeploymentName)
	if err != nil {
		return err
	}
	objects, err := kube.Decode(substituted)
	if err != nil {
		return err
	}

	kubeconfigPath, err := s.kubeconfig.Kubeconfig(ctx)
	if err != nil {
		return err
	}
	target, err := s.connect(kubeconfigPath)
	if err != nil {
		return err
	}

	namespace := deploySettings.Namespace
	if namespace == "" {
		namespace = "default"
	}
	name := objects.Deployment.Name

	previousImage, err := target.CurrentImage(ctx, namespace, name)
	if err != nil {
		return err
	}
	runCtx.PreviousImage = previousImage
	if previousImage == "" {
		fmt.Fprintf(out, "first deploy of %s/%s\n", namespace, name)
	} else {
		fmt.Fprintf(out, "%s/%s runs %s\n", namespace, name, previousImage)
	}

	generation, err := target.Apply(ctx, namespace, objects)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %s/%s at generation %d\n", namespace, name, generation)

	timeout := time.Duration(deploySettings.RolloutTimeout) * time.Second
	if timeout == 0 {
		timeout = 180 * time.Second
	}

	summary := map[string]interface{}{
		"image":         imageWithDigest,
		"previousImage": previousImage,
		"generation":    generation,
	}
	runCtx.SetSummary(s.ID(), summary)

	err = target.WaitForRollout(ctx, namespace, name, generation, timeout)
	if err == nil {
		fmt.Fprintf(out, "rollout of %s/%s complete\n", namespace, name)
		return nil
	}
	fmt.Fprintf(out, "rollout failed: %s\n", err)

	rollback := deploySettings.AutoRollback == nil || *deploySettings.AutoRollback
	if !rollback || previousImage == "" {
		return err
	}

	fmt.Fprintf(out, "rolling back %s/%s to %s\n", namespace, name, previousImage)
	rollbackErr := s.rollback(ctx, target, namespace, name, previousImage, timeout)
	if rollbackErr != nil {
		runCtx.Log.Warnf("rollback of %s/%s failed: %s", namespace, name, rollbackErr)
		fmt.Fprintf(out, "rollback failed: %s\n", rollbackErr)
		summary["rollbackFailed"] = rollbackErr.Error()
	} else {
		fmt.Fprintf(out, "rolled back to %s\n", previousImage)
		summary["rolledBackTo"] = previousImage
	}
	runCtx.SetSummary(s.ID(), summary)

	return err
}

func (s *DeployStage) rollback(
	ctx context.Context,
	target deployTarget,
	namespace string,
	name string,
	previousImage string,
	timeout time.Duration,
) error {
	generation, err := target.SetImage(ctx, namespace, name, previousImage)
	if err != nil {
		return err
	}
	return target.WaitForRollout(ctx, namespace, name, generation, timeout)
}
