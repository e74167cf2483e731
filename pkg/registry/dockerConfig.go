package registry

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type dockerConfig struct {
	Auths map[string]dockerConfigAuth `json:"auths"`
}

type dockerConfigAuth struct {
	Auth string `json:"auth"`
}

// WriteDockerConfig writes a config.json with the registry credentials
// into dir. buildx reads its push credentials from DOCKER_CONFIG,
// this keeps them out of argv and out of the daemon's own config.
func WriteDockerConfig(dir string, registryHost string, user string, pass string) (string, error) {
	config := dockerConfig{
		Auths: map[string]dockerConfigAuth{
			registryHost: {
				Auth: base64.StdEncoding.EncodeToString([]byte(user + ":" + pass)),
			},
		},
	}

	configJson, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("cannot serialize docker config %s", err)
	}

	configPath := filepath.Join(dir, "config.json")
	err = os.WriteFile(configPath, configJson, 0600)
	if err != nil {
		return "", fmt.Errorf("cannot write docker config %s", err)
	}

	return configPath, nil
}
