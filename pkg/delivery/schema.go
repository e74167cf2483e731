package delivery

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"sigs.k8s.io/yaml"
)

const settingsSchema = `
{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "app": {
      "type": "string",
      "pattern": "^[a-z0-9]([-a-z0-9]*[a-z0-9])?$"
    },
    "dockerfile": {
      "type": "string",
      "minLength": 1
    },
    "build": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "testTarget": {"type": "string", "minLength": 1},
        "finalTarget": {"type": "string", "minLength": 1},
        "platforms": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "string",
            "pattern": "^[a-z0-9]+/[a-z0-9]+$"
          }
        }
      }
    },
    "artifacts": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "collect": {"type": "boolean"},
        "paths": {
          "type": "array",
          "items": {"type": "string", "minLength": 1}
        }
      }
    },
    "scan": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "severity": {
          "type": "string",
          "pattern": "^(UNKNOWN|LOW|MEDIUM|HIGH|CRITICAL)(,(UNKNOWN|LOW|MEDIUM|HIGH|CRITICAL))*$"
        },
        "ignoreUnfixed": {"type": "boolean"}
      }
    },
    "deploy": {
      "type": "object",
      "additionalProperties": false,
      "required": ["manifest"],
      "properties": {
        "manifest": {"type": "string", "minLength": 1},
        "deploymentName": {"type": "string"},
        "namespace": {"type": "string"},
        "rolloutTimeoutSeconds": {"type": "integer", "minimum": 1},
        "autoRollback": {"type": "boolean"}
      }
    },
    "policies": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "branch": {"type": "string"},
          "tag": {"type": "string"},
          "event": {"type": "string", "enum": ["push", "tag", "pr"]}
        }
      }
    }
  }
}
`

// Lint validates a raw .pizza.yaml against the settings schema
func Lint(raw []byte) error {
	settingsJson, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return fmt.Errorf("cannot parse settings %s", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(settingsSchema)
	documentLoader := gojsonschema.NewBytesLoader(settingsJson)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("cannot validate json schema %s", err)
	}

	if !result.Valid() {
		errs := strings.Builder{}
		for _, desc := range result.Errors() {
			errs.WriteString(fmt.Sprintf("- %s\n", desc))
		}
		return fmt.Errorf("schema validation failed: \n%s", errs.String())
	}

	return nil
}
