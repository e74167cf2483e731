package main

import (
	"database/sql"
	"encoding/base32"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sami-chanane/thesis-pizza-app/cmd/pizzad/config"
	"github.com/sami-chanane/thesis-pizza-app/pkg/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/cosign"
	"github.com/sami-chanane/thesis-pizza-app/pkg/execs"
	"github.com/sami-chanane/thesis-pizza-app/pkg/gitrepo"
	"github.com/sami-chanane/thesis-pizza-app/pkg/kube"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/sami-chanane/thesis-pizza-app/pkg/notifications"
	"github.com/sami-chanane/thesis-pizza-app/pkg/registry"
	"github.com/sami-chanane/thesis-pizza-app/pkg/runner"
	"github.com/sami-chanane/thesis-pizza-app/pkg/sarif"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server/streaming"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server/token"
	"github.com/sami-chanane/thesis-pizza-app/pkg/stages"
	"github.com/sami-chanane/thesis-pizza-app/pkg/store"
	"github.com/sami-chanane/thesis-pizza-app/pkg/trivy"
	"github.com/sami-chanane/thesis-pizza-app/pkg/worker"
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		logrus.Warnf("could not load .env file, relying on env vars")
	}

	config, err := config.Environ()
	if err != nil {
		logger := logrus.WithError(err)
		logger.Fatalln("main: invalid configuration")
	}

	initLogging(config)

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		fmt.Println(config.String())
	}

	if config.Repo.Name == "" || config.Repo.URL == "" {
		logrus.Fatal("REPO_NAME and REPO_URL must be set, pizzad delivers a single repository")
	}
	if config.Registry.Host == "" || config.Registry.Repository == "" {
		logrus.Fatal("REGISTRY_HOST and REGISTRY_REPOSITORY must be set")
	}

	store := store.New(config.Database.Driver, config.Database.Config, config.Database.EncryptionKey)

	err = setupAdminUser(config, store)
	if err != nil {
		panic(err)
	}

	notificationsManager := notifications.NewManager()
	if config.Notifications.Provider == "slack" {
		notificationsManager.AddProvider(slackNotificationProvider(config))
	}
	if config.Notifications.Provider == "discord" {
		notificationsManager.AddProvider(discordNotificationProvider(config))
	}
	go notificationsManager.Run()

	gitSource := gitrepo.NewSource(
		config.Repo.URL,
		config.Repo.Username,
		config.Repo.Token,
		config.Repo.CachePath,
	)

	artifacts, err := artifact.NewStore(config.ArtifactsPath)
	if err != nil {
		panic(err)
	}

	execRunner := execs.NewRunner()

	var registryUser, registryPass *string
	if config.Registry.User != "" {
		registryUser = &config.Registry.User
	}
	if config.Registry.Pass != "" {
		registryPass = &config.Registry.Pass
	}
	registryClient, err := registry.NewClient(config.Registry.Host, registryUser, registryPass)
	if err != nil {
		logrus.Fatalf("cannot connect to the container engine %s", err)
	}
	auth := registry.Auth{
		Host:       config.Registry.Host,
		Repository: config.Registry.Repository,
		User:       config.Registry.User,
		Pass:       config.Registry.Pass,
	}

	scanner := trivy.NewScanner(execRunner, "")
	var sink *sarif.Sink
	if config.Scan.SinkURL != "" {
		sink = sarif.NewSink(config.Scan.SinkURL, config.Scan.SinkToken)
	} else {
		logrus.Warnf("SARIF_SINK_URL is not set, scan reports stay in the artifact store")
	}

	keyPath, err := cosignKeyPath(config)
	if err != nil {
		panic(err)
	}
	signer := cosign.NewSigner(execRunner, "", keyPath, config.Sign.PubKeyPath)

	var kubeconfig kube.KubeconfigProvider
	if config.IsDigitalOcean() {
		kubeconfig = kube.NewDOProvider(config.Deploy.DOApiToken, config.Deploy.DOClusterID, os.TempDir())
	} else {
		kubeconfig = kube.NewStaticProvider(config.Deploy.KubeconfigPath)
	}

	stageList := []runner.Stage{
		stages.NewLintStage(execRunner, ""),
		stages.NewRepoScanStage(scanner, sink),
		stages.NewUnitTestsStage(registryClient, config.Registry.PruneBuildCache),
		stages.NewBuildPushStage(registryClient, execRunner, "", auth),
		stages.NewImageScanStage(scanner, sink, auth),
		stages.NewSignStage(signer),
		stages.NewDeployStage(kubeconfig),
	}

	clientHub := streaming.NewClientHub()
	go clientHub.Run()

	runWorker := worker.NewRunWorker(
		store,
		gitSource,
		artifacts,
		stageList,
		notificationsManager,
		clientHub,
		runsProcessed,
		perf,
	)
	go runWorker.Run()
	logrus.Info("run worker started")

	scanOptions := trivy.Options{Severity: "HIGH,CRITICAL"}
	if auth.HasCredentials() {
		scanOptions.Env = []string{
			"TRIVY_USERNAME=" + auth.User,
			"TRIVY_PASSWORD=" + auth.Pass,
		}
	}
	rescanWorker := worker.NewRescanWorker(
		store,
		config.Repo.Name,
		scanner,
		scanOptions,
		sink,
		notificationsManager,
		config.Scan.RescanSchedule,
	)
	err = rescanWorker.Run()
	if err != nil {
		logrus.Warnf("not scheduling rescans: %s", err)
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Get("/metrics", promhttp.Handler().ServeHTTP)
	go http.ListenAndServe(":8889", metricsRouter)

	r := server.SetupRouter(config, store, artifacts, gitSource, clientHub)
	go func() {
		err = http.ListenAndServe(":8888", r)
		if err != nil {
			panic(err)
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-stopCh
	logrus.Info("Stopping.")
}

func slackNotificationProvider(config *config.Config) *notifications.SlackProvider {
	slackChannelMap := parseChannelMap(config)

	return &notifications.SlackProvider{
		Token:          config.Notifications.Token,
		ChannelMapping: slackChannelMap,
		DefaultChannel: config.Notifications.DefaultChannel,
	}
}

func discordNotificationProvider(config *config.Config) *notifications.DiscordProvider {
	discordChannelMapping := parseChannelMap(config)

	return &notifications.DiscordProvider{
		Token:          config.Notifications.Token,
		ChannelMapping: discordChannelMapping,
		ChannelID:      config.Notifications.DefaultChannel,
	}
}

func parseChannelMap(config *config.Config) map[string]string {
	channelMap := map[string]string{}
	if config.Notifications.ChannelMapping != "" {
		pairs := strings.Split(config.Notifications.ChannelMapping, ",")
		for _, p := range pairs {
			keyValue := strings.Split(p, "=")
			channelMap[keyValue[0]] = keyValue[1]
		}
	}
	return channelMap
}

// helper function configures the logging.
func initLogging(c *config.Config) {
	if c.Logging.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if c.Logging.Trace {
		logrus.SetLevel(logrus.TraceLevel)
	}
	if c.Logging.Text {
		logrus.SetFormatter(&logrus.TextFormatter{
			ForceColors:   c.Logging.Color,
			DisableColors: !c.Logging.Color,
		})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{
			PrettyPrint: c.Logging.Pretty,
		})
	}
}

// Creates an admin user and prints her access token, in case there are no users in the database
func setupAdminUser(config *config.Config, store *store.Store) error {
	admin, err := store.User("admin")

	if err == sql.ErrNoRows {
		admin := &model.User{
			Login:  "admin",
			Secret: adminToken(config),
			Admin:  true,
		}
		err = store.CreateUser(admin)
		if err != nil {
			return fmt.Errorf("couldn't create user admin user %s", err)
		}
		err = printAdminToken(admin)
		if err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("couldn't list users to create admin user %s", err)
	}

	if config.PrintAdminToken {
		err = printAdminToken(admin)
		if err != nil {
			return err
		}
	} else {
		logrus.Infof("Admin token was already printed, use the PRINT_ADMIN_TOKEN=true env var to print it again")
	}

	return nil
}

func printAdminToken(admin *model.User) error {
	token := token.New(token.UserToken, admin.Login)
	tokenStr, err := token.Sign(admin.Secret)
	if err != nil {
		return fmt.Errorf("couldn't create admin token %s", err)
	}
	logrus.Infof("Admin token: %s", tokenStr)

	return nil
}

func adminToken(config *config.Config) string {
	if config.AdminToken == "" {
		return base32.StdEncoding.EncodeToString(
			securecookie.GenerateRandomKey(32),
		)
	} else {
		return config.AdminToken
	}
}

// cosignKeyPath materializes the COSIGN_KEY env var to a file, cosign reads keys from disk
func cosignKeyPath(config *config.Config) (string, error) {
	if config.Sign.Key == "" {
		return config.Sign.KeyPath, nil
	}

	keyPath := filepath.Join(os.TempDir(), "cosign.key")
	err := os.WriteFile(keyPath, []byte(config.Sign.Key.String()), 0600)
	if err != nil {
		return "", fmt.Errorf("couldn't write the cosign key %s", err)
	}
	return keyPath, nil
}
