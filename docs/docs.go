// Package docs registers the OpenAPI document served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/questions": {
            "get": {
                "description": "Returns the questionnaire catalogue in asking order",
                "produces": ["application/json"],
                "tags": ["questionnaire"],
                "summary": "List questions",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.QuestionsResponse"}}
                }
            }
        },
        "/api/schema": {
            "get": {
                "description": "Returns the ordered feature columns the classifier expects",
                "produces": ["application/json"],
                "tags": ["prediction"],
                "summary": "Model columns",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SchemaResponse"}}
                }
            }
        },
        "/api/encode": {
            "post": {
                "description": "Builds the feature row for a set of answers without predicting. Missing or unrecognised answers encode as 0.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["prediction"],
                "summary": "Encode answers",
                "parameters": [
                    {"description": "question name to answer", "name": "answers", "in": "body", "required": true,
                     "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.EncodeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/predict": {
            "post": {
                "description": "Encodes the answers and asks the classifier for an outcome and confidence",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["prediction"],
                "summary": "Predict outcome",
                "parameters": [
                    {"description": "question name to answer", "name": "answers", "in": "body", "required": true,
                     "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/prediction.Result"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/sessions": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Start a session",
                "parameters": [
                    {"description": "flow kind", "name": "request", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/api.CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/api.SessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/sessions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get a session",
                "parameters": [{"type": "string", "description": "session id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SessionResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["sessions"],
                "summary": "Delete a session",
                "parameters": [{"type": "string", "description": "session id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/sessions/{id}/answers": {
            "post": {
                "description": "Send \"answer\" to answer the current question, or \"answers\" to fill every remaining question at once.\nCompleting the questionnaire runs the prediction once.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Answer questions",
                "parameters": [
                    {"type": "string", "description": "session id", "name": "id", "in": "path", "required": true},
                    {"description": "answer or answers", "name": "request", "in": "body", "required": true,
                     "schema": {"$ref": "#/definitions/api.AnswerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/api/sessions/{id}/restart": {
            "post": {
                "description": "Clears answers, transcript and result; the session id is kept",
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Restart a session",
                "parameters": [{"type": "string", "description": "session id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SessionResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.AnswerRequest": {
            "type": "object",
            "properties": {
                "answer": {"type": "string", "example": "Yes"},
                "answers": {"type": "object", "additionalProperties": {"type": "string"}},
                "question": {"type": "string", "example": "Fever"}
            }
        },
        "api.CreateSessionRequest": {
            "type": "object",
            "required": ["kind"],
            "properties": {
                "kind": {"type": "string", "enum": ["chat", "steps", "form"], "example": "chat"}
            }
        },
        "api.EncodeResponse": {
            "type": "object",
            "properties": {
                "features": {"$ref": "#/definitions/features.FeatureRow"}
            }
        },
        "api.QuestionsResponse": {
            "type": "object",
            "properties": {
                "questions": {"type": "array", "items": {"$ref": "#/definitions/questionnaire.Question"}}
            }
        },
        "api.SchemaResponse": {
            "type": "object",
            "properties": {
                "columns": {"type": "array", "items": {"type": "string"}}
            }
        },
        "api.SessionResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "kind": {"type": "string", "enum": ["chat", "steps", "form"]},
                "step": {"type": "integer"},
                "total": {"type": "integer"},
                "complete": {"type": "boolean"},
                "question": {"$ref": "#/definitions/questionnaire.Question"},
                "responses": {"type": "object", "additionalProperties": {"type": "string"}},
                "transcript": {"type": "array", "items": {"$ref": "#/definitions/questionnaire.Message"}},
                "result": {"$ref": "#/definitions/prediction.Result"}
            }
        },
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "category": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}},
                "request_id": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "features.FeatureRow": {
            "type": "object",
            "properties": {
                "columns": {"type": "array", "items": {"type": "string"}},
                "values": {"type": "array", "items": {"type": "number"}}
            }
        },
        "prediction.Result": {
            "type": "object",
            "properties": {
                "label": {"type": "integer"},
                "outcome": {"type": "string", "enum": ["Positive", "Negative"]},
                "confidence": {"type": "number"},
                "probabilities": {"type": "array", "items": {"type": "number"}},
                "features": {"$ref": "#/definitions/features.FeatureRow"},
                "model_version": {"type": "string"},
                "cached": {"type": "boolean"},
                "predicted_at": {"type": "string"}
            }
        },
        "questionnaire.Message": {
            "type": "object",
            "properties": {
                "speaker": {"type": "string", "enum": ["bot", "user"]},
                "text": {"type": "string"}
            }
        },
        "questionnaire.Question": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "column": {"type": "string"},
                "prompt": {"type": "string"},
                "domain": {"type": "string", "enum": ["choice", "text", "integer"]},
                "options": {"type": "array", "items": {"type": "string"}},
                "min": {"type": "integer"},
                "max": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Symptom Checker API",
	Description:      "Questionnaire sessions, feature encoding and outcome prediction.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
