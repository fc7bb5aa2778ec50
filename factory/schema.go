package factory

// catalogSchema is the JSON Schema every catalog definition must satisfy.
// Referential checks (unknown shift IDs and the like) happen in Go after it.
const catalogSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "definitions": {
    "time": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
    "window": {
      "type": "object",
      "additionalProperties": false,
      "required": ["start", "end"],
      "properties": {
        "start": {"$ref": "#/definitions/time"},
        "end": {"$ref": "#/definitions/time"}
      }
    },
    "ids": {"type": "array", "items": {"type": "string", "minLength": 1}, "uniqueItems": true},
    "minutes": {"type": "integer", "minimum": 0, "maximum": 720},
    "fixed": {
      "type": "object",
      "additionalProperties": false,
      "required": ["days"],
      "properties": {
        "id": {"type": "string"},
        "name": {"type": "string"},
        "days": {
          "type": "object",
          "additionalProperties": false,
          "minProperties": 1,
          "patternProperties": {
            "^(sunday|monday|tuesday|wednesday|thursday|friday|saturday)$": {"$ref": "#/definitions/window"}
          }
        },
        "lunch": {"$ref": "#/definitions/window"},
        "areas": {"$ref": "#/definitions/ids"},
        "positions": {"$ref": "#/definitions/ids"}
      }
    }
  },
  "properties": {
    "tolerances": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "tolerance": {"$ref": "#/definitions/minutes"},
        "early_check_in": {"$ref": "#/definitions/minutes"},
        "late_check_in": {"$ref": "#/definitions/minutes"},
        "early_check_out": {"$ref": "#/definitions/minutes"},
        "late_checkout": {"$ref": "#/definitions/minutes"},
        "early_departure": {"$ref": "#/definitions/minutes"}
      }
    },
    "fixed_schedule": {"$ref": "#/definitions/fixed"},
    "shifts": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "name", "start", "end"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "start": {"$ref": "#/definitions/time"},
          "end": {"$ref": "#/definitions/time"},
          "active": {"type": "boolean"},
          "areas": {"$ref": "#/definitions/ids"},
          "positions": {"$ref": "#/definitions/ids"}
        }
      }
    },
    "supernumerary": {
      "type": "object",
      "additionalProperties": false,
      "required": ["mode"],
      "properties": {
        "mode": {"enum": ["REPLACEMENT", "FIXED_SCHEDULE"]},
        "allowed_shifts": {"$ref": "#/definitions/ids"},
        "schedule": {"$ref": "#/definitions/fixed"}
      }
    },
    "supernumerary_positions": {"$ref": "#/definitions/ids"},
    "employees": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "name"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "area_id": {"type": "string"},
          "position_id": {"type": "string"},
          "shifts": {"$ref": "#/definitions/ids"}
        }
      }
    }
  }
}`
