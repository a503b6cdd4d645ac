// Package docs registers the OpenAPI document served at /swagger/doc.json.
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
        "/games": {
            "post": {
                "tags": ["games"],
                "summary": "Create a game and seat the creator as organizer",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/games/{game_id}": {
            "get": {
                "tags": ["games"],
                "summary": "Fetch a game, reconciling any resolved activation ballot",
                "parameters": [
                    {"type": "string", "name": "game_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            }
        },
        "/invitations/redeem": {
            "post": {
                "tags": ["games"],
                "summary": "Redeem a single-use invitation token",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "410": {"description": "Gone"}}
            }
        },
        "/proposals": {
            "post": {
                "tags": ["consensus"],
                "summary": "Open a proposal for group approval",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}
            }
        },
        "/proposals/{proposal_id}/votes": {
            "post": {
                "tags": ["consensus"],
                "summary": "Cast or change a vote on an open proposal",
                "parameters": [
                    {"type": "string", "name": "proposal_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}
            }
        },
        "/acts": {
            "post": {
                "tags": ["pacing"],
                "summary": "Propose a new act",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/scenes": {
            "post": {
                "tags": ["pacing"],
                "summary": "Propose a new scene with an optional tension override",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}
            }
        },
        "/scenes/{scene_id}/complete": {
            "post": {
                "tags": ["pacing"],
                "summary": "Propose completing a scene, triggering tension adjustment",
                "parameters": [
                    {"type": "string", "name": "scene_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/beats": {
            "post": {
                "tags": ["beats"],
                "summary": "Submit a beat; minor beats canonize immediately",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"201": {"description": "Created"}, "403": {"description": "Forbidden"}}
            }
        },
        "/beats/{beat_id}/challenges": {
            "post": {
                "tags": ["beats"],
                "summary": "File a challenge against a canon beat",
                "parameters": [
                    {"type": "string", "name": "beat_id", "in": "path", "required": true},
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}
            }
        },
        "/fortune/rolls": {
            "post": {
                "tags": ["fortune"],
                "summary": "Roll fortune at the given odds and tension",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/dice/rolls": {
            "post": {
                "tags": ["fortune"],
                "summary": "Roll dice from standard notation",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Loom Narrative API",
	Description:      "Consensus, pacing, beat, and fortune endpoints for collaborative fiction games.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
