package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TraceVault API",
        "description": "Workspace-scoped record keeping on dynamic templates",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Workspaces", "description": "Workspace selection and membership"},
        {"name": "Templates", "description": "Templates and property definitions"},
        {"name": "Records", "description": "Assets, log entries and their values"},
        {"name": "Documents", "description": "Document storage and linking rules"},
        {"name": "Suggestions", "description": "Value auto-completion"},
        {"name": "Exports", "description": "Asynchronous record exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Access token and profile"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/workspaces": {
            "get": {
                "tags": ["Workspaces"],
                "summary": "List workspaces accessible to the caller",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Workspaces"],
                "summary": "Create a workspace owned by the caller",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/workspaces/active": {
            "get": {
                "tags": ["Workspaces"],
                "summary": "Resolve the caller's active workspace scope",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/workspaces/{id}/switch": {
            "post": {
                "tags": ["Workspaces"],
                "summary": "Switch the active workspace",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "New scope"},
                    "403": {"description": "Not a member"}
                }
            }
        },
        "/workspace": {
            "delete": {
                "tags": ["Workspaces"],
                "summary": "Delete the active workspace and everything inside it",
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/workspace/members": {
            "get": {
                "tags": ["Workspaces"],
                "summary": "List workspace members",
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Workspaces"],
                "summary": "Grant or update a member role",
                "responses": {"204": {"description": "Updated"}}
            }
        },
        "/workspace/members/{userId}": {
            "delete": {
                "tags": ["Workspaces"],
                "summary": "Remove a member from the workspace",
                "parameters": [{"name": "userId", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Removed"}}
            }
        },
        "/templates": {
            "get": {
                "tags": ["Templates"],
                "summary": "List templates of a kind with record counts",
                "parameters": [{"name": "kind", "in": "query", "type": "string", "enum": ["asset", "log"]}],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Templates"],
                "summary": "Create a template with its properties",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Name already in use"}
                }
            }
        },
        "/templates/{id}": {
            "get": {
                "tags": ["Templates"],
                "summary": "Get a template with its active properties",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Templates"],
                "summary": "Rename a template",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Templates"],
                "summary": "Delete a template with all of its records and values",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/templates/{id}/properties": {
            "put": {
                "tags": ["Templates"],
                "summary": "Replace the active property set of a template",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Active properties after the save"}}
            }
        },
        "/templates/{id}/records": {
            "get": {
                "tags": ["Records"],
                "summary": "List records of a template",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/templates/{id}/properties/{propertyId}/suggestions": {
            "get": {
                "tags": ["Suggestions"],
                "summary": "Suggest previously stored values for a property",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "propertyId", "in": "path", "required": true, "type": "string"},
                    {"name": "q", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "Frequency-ranked values"}}
            }
        },
        "/records/assets": {
            "post": {
                "tags": ["Records"],
                "summary": "Create an asset record",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/records/logs": {
            "post": {
                "tags": ["Records"],
                "summary": "Append a log entry to an asset",
                "responses": {"201": {"description": "Created with a frozen field snapshot"}}
            }
        },
        "/records/logs/{id}": {
            "put": {
                "tags": ["Records"],
                "summary": "Edit the values of a log entry",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/records/{id}": {
            "get": {
                "tags": ["Records"],
                "summary": "Get a record",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Records"],
                "summary": "Delete a record",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/records/{id}/rendered": {
            "get": {
                "tags": ["Records"],
                "summary": "Render a log entry from its frozen snapshot",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Ordered fields with values"}}
            }
        },
        "/records/{id}/logs": {
            "get": {
                "tags": ["Records"],
                "summary": "List log entries attached to an asset",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/records/{id}/values": {
            "get": {
                "tags": ["Records"],
                "summary": "Get a record's stored values keyed by property id",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "put": {
                "tags": ["Records"],
                "summary": "Upsert a record's values",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Stored"}}
            }
        },
        "/records/{id}/documents": {
            "get": {
                "tags": ["Records"],
                "summary": "Resolve the documents currently linked to a record",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/documents": {
            "get": {
                "tags": ["Documents"],
                "summary": "List workspace documents",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a document",
                "consumes": ["multipart/form-data"],
                "parameters": [{"name": "file", "in": "formData", "required": true, "type": "file"}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Size or type not allowed"}
                }
            }
        },
        "/documents/{id}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Get a document's metadata",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Documents"],
                "summary": "Delete a document and its linking rules",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/documents/{id}/signed-url": {
            "post": {
                "tags": ["Documents"],
                "summary": "Issue a time-limited download token",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "Token and expiry"}}
            }
        },
        "/documents/download/{token}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a document blob using a signed token",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/documents/{id}/rules": {
            "get": {
                "tags": ["Documents"],
                "summary": "List the rules attached to a document",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/documents/rules": {
            "post": {
                "tags": ["Documents"],
                "summary": "Create a linked-document rule",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/documents/rules/{ruleId}": {
            "delete": {
                "tags": ["Documents"],
                "summary": "Delete a linked-document rule",
                "parameters": [{"name": "ruleId", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a record export for a template",
                "responses": {"202": {"description": "Job accepted"}}
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Get the status of an export job",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export using a signed token",
                "parameters": [{"name": "token", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "File stream"}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
