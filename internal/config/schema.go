package config

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/argo-algo/pkg/errors"
)

// Schema returns the JSON schema of the configuration file.
func Schema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == reflect.TypeOf(time.Duration(0)) {
				return &jsonschema.Schema{
					Type:        "string",
					Description: "Go duration such as 500ms, 5s or 5m",
				}
			}

			if t == reflect.TypeOf(time.Weekday(0)) {
				return &jsonschema.Schema{
					Type:    "integer",
					Minimum: json.Number("0"),
					Maximum: json.Number("6"),
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(&Config{})
	if schema == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "failed to reflect configuration schema")
	}

	schema.Title = "algotrade-config"
	schema.Description = "Configuration schema for the algotrade runner"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// SchemaJSON returns the indented JSON schema.
func SchemaJSON() (string, error) {
	schema, err := Schema()
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to encode schema", err)
	}

	return string(data), nil
}
