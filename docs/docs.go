// Package docs registers the OpenAPI document served under /swagger.
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
        "/healthz": {
            "get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}
        },
        "/readyz": {
            "get": {"tags": ["health"], "summary": "Readiness check", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/api/v1/system/scheduler/status": {
            "get": {"tags": ["scheduler"], "summary": "Daily watchlist schedule status", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/system/scheduler/jobs": {
            "get": {"tags": ["scheduler"], "summary": "Every registered job", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/system/scheduler/trigger": {
            "get": {"tags": ["scheduler"], "summary": "Run the watchlist scan now", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/system/scheduler/trigger/push": {
            "get": {
                "tags": ["scheduler"],
                "summary": "Push one digest now",
                "parameters": [{"type": "string", "description": "morning, noon or evening", "name": "mode", "in": "query", "required": true}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "invalid_mode"}}
            }
        },
        "/api/v1/system/scheduler/reschedule": {
            "put": {
                "tags": ["scheduler"],
                "summary": "Move the daily watchlist scan",
                "parameters": [{"type": "string", "description": "HH:MM", "name": "schedule_time", "in": "query", "required": true}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "invalid_time"}}
            }
        },
        "/api/v1/system/scheduler/enable": {
            "put": {
                "tags": ["scheduler"],
                "summary": "Enable the daily jobs",
                "parameters": [{"type": "string", "description": "HH:MM", "name": "schedule_time", "in": "query", "required": true}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "invalid_time"}}
            }
        },
        "/api/v1/system/scheduler/disable": {
            "put": {"tags": ["scheduler"], "summary": "Disable the daily jobs", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/watchlist": {
            "get": {"tags": ["watchlist"], "summary": "List the watchlist", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["watchlist"], "summary": "Add a stock to the watchlist", "responses": {"200": {"description": "OK"}, "422": {"description": "invalid_code"}}}
        },
        "/api/v1/watchlist/{id}": {
            "delete": {
                "tags": ["watchlist"],
                "summary": "Remove a watchlist entry",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/v1/analysis/analyze": {
            "post": {"tags": ["analysis"], "summary": "Submit one stock for analysis", "responses": {"202": {"description": "Accepted"}, "409": {"description": "duplicate_task"}, "422": {"description": "invalid_code"}}}
        },
        "/api/v1/analysis/tasks": {
            "get": {"tags": ["analysis"], "summary": "List analysis tasks", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/bot/telegram": {
            "post": {"tags": ["bot"], "summary": "Telegram webhook", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}}}
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Raise API",
	Description:      "Watchlist scheduling, analysis dispatch and the Telegram position ledger.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
