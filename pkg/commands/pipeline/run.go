package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/enescakir/emoji"
	"github.com/urfave/cli/v2"

	"github.com/sami-chanane/thesis-pizza-app/pkg/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/cosign"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/execs"
	"github.com/sami-chanane/thesis-pizza-app/pkg/kube"
	"github.com/sami-chanane/thesis-pizza-app/pkg/registry"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
	"github.com/sami-chanane/thesis-pizza-app/pkg/sarif"
	"github.com/sami-chanane/thesis-pizza-app/pkg/stages"
	"github.com/sami-chanane/thesis-pizza-app/pkg/trivy"
)

var pipelineRunCmd = cli.Command{
	Name:  "run",
	Usage: "Runs the delivery pipeline on this machine",
	UsageText: `pizza pipeline run \
     --registry registry.digitalocean.com \
     --registry-repository pizza-registry`,
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "source checkout to deliver",
			Value:   ".",
		},
		&cli.StringFlag{
			Name:     "registry",
			Usage:    "registry host to push to, REGISTRY_HOST environment variable alternatively",
			EnvVars:  []string{"REGISTRY_HOST"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "registry-repository",
			Usage:    "repository under the registry host, REGISTRY_REPOSITORY environment variable alternatively",
			EnvVars:  []string{"REGISTRY_REPOSITORY"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "registry-user",
			Usage:   "registry user, REGISTRY_USER environment variable alternatively",
			EnvVars: []string{"REGISTRY_USER"},
		},
		&cli.StringFlag{
			Name:    "registry-pass",
			Usage:   "registry password, REGISTRY_PASS environment variable alternatively",
			EnvVars: []string{"REGISTRY_PASS"},
		},
		&cli.StringFlag{
			Name:    "sarif-sink",
			Usage:   "security sink to upload scan reports to, SARIF_SINK_URL environment variable alternatively",
			EnvVars: []string{"SARIF_SINK_URL"},
		},
		&cli.StringFlag{
			Name:    "sarif-token",
			Usage:   "api token of the security sink, SARIF_SINK_TOKEN environment variable alternatively",
			EnvVars: []string{"SARIF_SINK_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "cosign-key",
			Usage:   "cosign private key file, COSIGN_KEY_PATH environment variable alternatively",
			EnvVars: []string{"COSIGN_KEY_PATH"},
		},
		&cli.StringFlag{
			Name:    "cosign-pub",
			Usage:   "cosign public key file for verification, COSIGN_PUB_KEY_PATH environment variable alternatively",
			EnvVars: []string{"COSIGN_PUB_KEY_PATH"},
		},
		&cli.StringFlag{
			Name:    "kubeconfig",
			Usage:   "kubeconfig of the target cluster, defaults to ~/.kube/config",
			EnvVars: []string{"KUBECONFIG_PATH", "KUBECONFIG"},
		},
		&cli.StringFlag{
			Name:    "do-api-token",
			Usage:   "DigitalOcean api token, fetches the kubeconfig of a managed cluster",
			EnvVars: []string{"DO_API_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "do-cluster-id",
			Usage:   "DigitalOcean cluster id, only usable with --do-api-token",
			EnvVars: []string{"DO_CLUSTER_ID"},
		},
		&cli.StringFlag{
			Name:  "artifacts",
			Usage: "folder to keep the run artifacts in, a temp folder otherwise",
		},
		&cli.BoolFlag{
			Name:  "skip-deploy",
			Usage: "build, scan and sign, but leave the cluster alone",
		},
		&cli.BoolFlag{
			Name:  "skip-sign",
			Usage: "skip image signing, the deploy is skipped with it",
		},
	}, triggerFlags...),
	Action: run,
}

func run(c *cli.Context) error {
	workspace, err := filepath.Abs(c.String("path"))
	if err != nil {
		return err
	}

	t, err := resolveTrigger(c, workspace)
	if err != nil {
		return err
	}
	if t.Repo == "" {
		// a checkout without an origin remote still delivers
		t.Repo = "local/" + filepath.Base(workspace)
	}
	if u, err := user.Current(); err == nil {
		t.TriggeredBy = u.Username
	}
	err = t.Validate()
	if err != nil {
		return err
	}

	settings, err := loadSettings(workspace, t)
	if err != nil {
		return err
	}
	if !settings.TriggerMatches(t) {
		fmt.Fprintf(os.Stderr, "%v The trigger does not match any delivery policy, the server would reject it\n", emoji.Warning)
	}

	plan := delivery.NewPlan(settings)
	if c.Bool("skip-sign") {
		plan = plan.Without(delivery.StageSign)
	}
	if c.Bool("skip-deploy") {
		plan = plan.Without(delivery.StageDeploy)
	}

	artifactsPath := c.String("artifacts")
	if artifactsPath == "" {
		artifactsPath, err = os.MkdirTemp("", "pizza-run-")
		if err != nil {
			return fmt.Errorf("cannot create the artifacts folder %s", err)
		}
	}
	artifacts, err := artifact.NewStore(artifactsPath)
	if err != nil {
		return err
	}

	stageList, err := assembleStages(c)
	if err != nil {
		return err
	}

	runCtx := runner.NewContext(t.ShortSHA(), t, settings, workspace, artifacts)
	runCtx.Output = os.Stdout

	pipelineRunner := runner.NewRunner(stageList, runner.Hooks{
		OnStageStart: func(runID string, result delivery.StageResult) error {
			fmt.Printf("%v Stage %s started\n", emoji.HourglassNotDone, result.ID)
			return nil
		},
	})
	results, status, desc := pipelineRunner.Run(context.Background(), runCtx, plan)

	fmt.Printf("\n%v Run (%s) is %s %s\n", emoji.BackhandIndexPointingRight, runCtx.RunID, status, desc)
	for _, result := range results {
		if result.StatusDesc != "" {
			fmt.Printf("\t%v Stage %s is %s, %s\n", stageEmoji(result.Status), result.ID, result.Status, result.StatusDesc)
		} else {
			fmt.Printf("\t%v Stage %s is %s\n", stageEmoji(result.Status), result.ID, result.Status)
		}
	}
	fmt.Fprintf(os.Stderr, "%v Artifacts are in %s\n", emoji.FileFolder, artifactsPath)

	if status == delivery.RunFailure {
		return fmt.Errorf("run failed: %s", desc)
	}
	return nil
}

// assembleStages builds the stage implementations from the flags, the same
// set the daemon runs
func assembleStages(c *cli.Context) ([]runner.Stage, error) {
	execRunner := execs.NewRunner()

	var registryUser, registryPass *string
	if c.String("registry-user") != "" {
		u := c.String("registry-user")
		registryUser = &u
	}
	if c.String("registry-pass") != "" {
		p := c.String("registry-pass")
		registryPass = &p
	}
	registryClient, err := registry.NewClient(c.String("registry"), registryUser, registryPass)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the container engine %s", err)
	}
	auth := registry.Auth{
		Host:       c.String("registry"),
		Repository: c.String("registry-repository"),
		User:       c.String("registry-user"),
		Pass:       c.String("registry-pass"),
	}

	scanner := trivy.NewScanner(execRunner, "")
	var sink *sarif.Sink
	if c.String("sarif-sink") != "" {
		sink = sarif.NewSink(c.String("sarif-sink"), c.String("sarif-token"))
	}

	signer := cosign.NewSigner(execRunner, "", c.String("cosign-key"), c.String("cosign-pub"))

	var kubeconfig kube.KubeconfigProvider
	if c.String("do-api-token") != "" {
		kubeconfig = kube.NewDOProvider(c.String("do-api-token"), c.String("do-cluster-id"), os.TempDir())
	} else {
		kubeconfigPath := c.String("kubeconfig")
		if kubeconfigPath == "" {
			if home, err := os.UserHomeDir(); err == nil {
				kubeconfigPath = filepath.Join(home, ".kube", "config")
			}
		}
		kubeconfig = kube.NewStaticProvider(kubeconfigPath)
	}

	return []runner.Stage{
		stages.NewLintStage(execRunner, ""),
		stages.NewRepoScanStage(scanner, sink),
		// the local build cache belongs to the developer, no pruning
		stages.NewUnitTestsStage(registryClient, false),
		stages.NewBuildPushStage(registryClient, execRunner, "", auth),
		stages.NewImageScanStage(scanner, sink, auth),
		stages.NewSignStage(signer),
		stages.NewDeployStage(kubeconfig),
	}, nil
}

func loadSettings(workspace string, t *delivery.Trigger) (*delivery.Settings, error) {
	raw, err := os.ReadFile(filepath.Join(workspace, delivery.DefaultSettingsFile))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot read %s: %s", delivery.DefaultSettingsFile, err)
	}

	settings, err := delivery.LoadSettings(raw)
	if err != nil {
		return nil, err
	}

	err = settings.ResolveVars(delivery.Vars(t))
	if err != nil {
		return nil, err
	}

	err = settings.Validate()
	if err != nil {
		return nil, err
	}

	return settings, nil
}
