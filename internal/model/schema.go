package model

import (
	"fmt"
	"sort"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// DatasetSchemaName is the name under which the schema is sent to providers.
const DatasetSchemaName = "ConversationDataset"

// DatasetJSONSchema returns the JSON Schema for ConversationDataset.
// Every object is closed and every property required, as strict structured output demands.
func DatasetJSONSchema() *jsonschema.Definition {
	sentiments := make([]string, len(Sentiments))
	for i, s := range Sentiments {
		sentiments[i] = string(s)
	}

	turn := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"message":   {Type: jsonschema.String},
			"sentiment": {Type: jsonschema.String, Enum: sentiments},
		},
		Required:             []string{"message", "sentiment"},
		AdditionalProperties: false,
	}

	pair := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"agent":          turn,
			"customer":       turn,
			"recommendation": turn,
			"score": {
				Type:        jsonschema.Number,
				Description: "Quality of the agent turn, 0.0 to 1.0",
			},
		},
		Required:             []string{"agent", "customer", "recommendation", "score"},
		AdditionalProperties: false,
	}

	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"source":      {Type: jsonschema.String},
			"uuid":        {Type: jsonschema.String},
			"created_at":  {Type: jsonschema.String},
			"description": {Type: jsonschema.String},
			"conversation": {
				Type:  jsonschema.Array,
				Items: &pair,
			},
		},
		Required:             []string{"source", "uuid", "created_at", "description", "conversation"},
		AdditionalProperties: false,
	}
}

// checkConforms reports the first place v departs from def: a missing required
// key, a null or a value of the wrong JSON type. v is the result of decoding
// into an any. Enum membership is checked by ValidateDataset.
func checkConforms(def *jsonschema.Definition, v any, path string) error {
	switch def.Type {
	case jsonschema.Object:
		obj, ok := v.(map[string]any)
		if !ok {
			return typeMismatch(path, def.Type, v)
		}
		for _, key := range def.Required {
			if _, ok := obj[key]; !ok {
				return fmt.Errorf("%w: %s: missing required key %q", ErrSchemaMismatch, path, key)
			}
		}
		keys := make([]string, 0, len(obj))
		for key := range obj {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			prop, ok := def.Properties[key]
			if !ok {
				continue
			}
			if err := checkConforms(&prop, obj[key], path+"."+key); err != nil {
				return err
			}
		}
	case jsonschema.Array:
		items, ok := v.([]any)
		if !ok {
			return typeMismatch(path, def.Type, v)
		}
		if def.Items == nil {
			return nil
		}
		for i, item := range items {
			if err := checkConforms(def.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case jsonschema.String:
		if _, ok := v.(string); !ok {
			return typeMismatch(path, def.Type, v)
		}
	case jsonschema.Number, jsonschema.Integer:
		if _, ok := v.(float64); !ok {
			return typeMismatch(path, def.Type, v)
		}
	case jsonschema.Boolean:
		if _, ok := v.(bool); !ok {
			return typeMismatch(path, def.Type, v)
		}
	}
	return nil
}

func typeMismatch(path string, want jsonschema.DataType, got any) error {
	if got == nil {
		return fmt.Errorf("%w: %s: expected %s, got null", ErrSchemaMismatch, path, want)
	}
	return fmt.Errorf("%w: %s: expected %s, got %T", ErrSchemaMismatch, path, want, got)
}
