package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sami-chanane/thesis-pizza-app/pkg/commands"
)

const deployManifest = `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: <DEPLOYMENT_NAME>
spec:
  replicas: 2
  selector:
    matchLabels:
      app: <DEPLOYMENT_NAME>
  template:
    metadata:
      labels:
        app: <DEPLOYMENT_NAME>
    spec:
      containers:
      - name: app
        image: <IMAGE>
---
apiVersion: v1
kind: Service
metadata:
  name: <DEPLOYMENT_NAME>
spec:
  selector:
    app: <DEPLOYMENT_NAME>
  ports:
  - port: 80
`

const manifestWithUnknownPlaceholder = `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: <DEPLOYMENT_NAME>
spec:
  template:
    spec:
      containers:
      - name: app
        image: <IMAGE>
        env:
        - name: TOPPING
          value: <TOPPING>
`

func TestRender(t *testing.T) {
	manifestFile := filepath.Join(t.TempDir(), "app.yaml")
	outputFile := filepath.Join(t.TempDir(), "rendered.yaml")
	os.WriteFile(manifestFile, []byte(deployManifest), 0644)

	args := strings.Split("pizza manifest render", " ")
	args = append(args,
		"-f", manifestFile,
		"--image", "registry.digitalocean.com/pizza-registry/pizza-app:ec8e4f5",
		"--deployment-name", "pizza-app",
		"-o", outputFile,
	)

	t.Run("Should render the placeholders", func(t *testing.T) {
		err := commands.Run(&Command, args)
		if err != nil {
			t.Errorf("Expected no error, but got: %v", err)
		}

		rendered, err := os.ReadFile(outputFile)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(rendered), "image: registry.digitalocean.com/pizza-registry/pizza-app:ec8e4f5") {
			t.Errorf("Expected the image to be substituted, got:\n%s", rendered)
		}
		if strings.Contains(string(rendered), "<DEPLOYMENT_NAME>") {
			t.Errorf("Expected no placeholder left, got:\n%s", rendered)
		}
	})

	t.Run("Should fail on an unknown placeholder", func(t *testing.T) {
		os.WriteFile(manifestFile, []byte(manifestWithUnknownPlaceholder), 0644)
		err := commands.Run(&Command, args)
		if err == nil {
			t.Error("Expected an error, but got nil")
		}
	})
}
