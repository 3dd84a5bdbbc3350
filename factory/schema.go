package factory

import (
	"errors"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrRuleSchema is returned when a rule document has the wrong shape, such
// as a string priority or a condition without a type.
var ErrRuleSchema = errors.New("rule document does not match schema")

// ruleSchemaJSON describes field shapes only. Which fields a type needs and
// the allowed ranges of amounts are checked by funding.ValidateRule, so a
// document can pass here and still be an invalid rule.
const ruleSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "money": {"type": ["string", "number"]},
    "timestamp": {"type": ["string", "null"]},
    "condition": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"type": "string", "minLength": 1},
        "parameters": {
          "type": ["object", "null"],
          "properties": {
            "envelope_id": {"type": "string"},
            "category": {"type": "string"},
            "min_count": {"type": "integer", "minimum": 0},
            "window_days": {"type": "integer", "minimum": 0},
            "min_amount": {"$ref": "#/$defs/money"}
          }
        }
      }
    }
  },
  "type": "object",
  "required": ["type", "config"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "type": {"type": "string"},
    "trigger": {"type": "string"},
    "priority": {"type": "integer"},
    "enabled": {"type": "boolean"},
    "created_at": {"$ref": "#/$defs/timestamp"},
    "last_executed": {"$ref": "#/$defs/timestamp"},
    "execution_count": {"type": "integer", "minimum": 0},
    "config": {
      "type": "object",
      "properties": {
        "source_type": {"type": "string"},
        "source_id": {"type": "string"},
        "target_type": {"type": "string"},
        "target_id": {"type": "string"},
        "target_ids": {"type": "array", "items": {"type": "string"}},
        "amount": {"$ref": "#/$defs/money"},
        "percentage": {"$ref": "#/$defs/money"},
        "fill_to": {"type": "string"},
        "conditions": {"type": "array", "items": {"$ref": "#/$defs/condition"}},
        "schedule_config": {
          "type": ["object", "null"],
          "properties": {
            "day_of_week": {"type": "integer", "minimum": 0, "maximum": 6},
            "day_of_month": {"type": "integer", "minimum": 0, "maximum": 31}
          }
        }
      }
    }
  }
}`

var ruleSchema = jsonschema.MustCompileString("https://autofund.local/schemas/rule.schema.json", ruleSchemaJSON)
