// Package docs registers the OpenAPI document served under swagger/.
// Regenerate with: swag init -g cmd/api/main.go -o docs
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
        "/health/": {
            "get": {"tags": ["Health"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/auth/token/": {
            "post": {"tags": ["Auth"], "summary": "Issue an access token for an ERP user", "security": [{"ServiceToken": []}], "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}
        },
        "/v1/auth/me/": {
            "get": {"tags": ["Auth"], "summary": "Get current caller", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/v1/boards/": {
            "get": {"tags": ["Boards"], "summary": "List boards", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Boards"], "summary": "Create board", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        },
        "/v1/columns/reorder/": {
            "post": {"tags": ["Columns"], "summary": "Reorder the columns of a board", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/cards/": {
            "get": {"tags": ["Cards"], "summary": "List cards", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Cards"], "summary": "Create card", "responses": {"201": {"description": "Created"}}}
        },
        "/v1/cards/{id}/move/": {
            "post": {"tags": ["Cards"], "summary": "Move card to another column", "responses": {"200": {"description": "OK"}, "409": {"description": "Card is archived"}}}
        },
        "/v1/cards/{id}/archive/": {
            "post": {"tags": ["Cards"], "summary": "Archive card", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/cards/{id}/events/": {
            "get": {"tags": ["Cards"], "summary": "Card event log", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/rules/": {
            "get": {"tags": ["Rules"], "summary": "List rules", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Rules"], "summary": "Create rule", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/v1/rules/{id}/executions/": {
            "get": {"tags": ["Rules"], "summary": "Rule execution log", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/object-tasks/overdue-scan/": {
            "post": {"tags": ["Object tasks"], "summary": "Run the overdue scan now", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/warehouse/moves/": {
            "get": {"tags": ["Warehouse"], "summary": "List stock moves", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Warehouse"], "summary": "Create stock move", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/v1/warehouse/moves/balances/": {
            "get": {"tags": ["Warehouse"], "summary": "Stock balances of a location", "responses": {"200": {"description": "OK"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "ServiceToken": {"type": "apiKey", "name": "X-Service-Token", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/kanban-api",
	Schemes:          []string{},
	Title:            "Kanban Service API",
	Description:      "Boards, cards, rules, warehouse ledger and ERP notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
