package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Smart Condominium API",
        "description": "Backend for condominium administration: residents, billing, reservations, maintenance and gate security",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Session and credential management"},
        {"name": "Users", "description": "Resident and staff accounts"},
        {"name": "Units", "description": "Housing units"},
        {"name": "Areas", "description": "Common areas"},
        {"name": "Reservations", "description": "Common-area bookings"},
        {"name": "Notifications", "description": "Announcements and delivery preferences"},
        {"name": "Billing", "description": "Charges, payments and reports"},
        {"name": "Maintenance", "description": "Maintenance requests and work reports"},
        {"name": "Security", "description": "Gate control, vehicles and incidents"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register resident account",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already in use"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "New token pair"}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "responses": {
                    "200": {"description": "Paginated users", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create user",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/units": {
            "get": {
                "tags": ["Units"],
                "summary": "List housing units",
                "responses": {
                    "200": {"description": "Paginated units"}
                }
            }
        },
        "/areas": {
            "get": {
                "tags": ["Areas"],
                "summary": "List common areas",
                "responses": {
                    "200": {"description": "Paginated areas"}
                }
            }
        },
        "/areas/{id}/availability": {
            "get": {
                "tags": ["Reservations"],
                "summary": "Hourly availability for a date",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Time slots"}
                }
            }
        },
        "/reservations": {
            "post": {
                "tags": ["Reservations"],
                "summary": "Create reservation",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Slot already taken"}
                }
            },
            "get": {
                "tags": ["Reservations"],
                "summary": "List reservations",
                "responses": {
                    "200": {"description": "Paginated reservations"}
                }
            }
        },
        "/notifications": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Create and dispatch a notification",
                "responses": {
                    "201": {"description": "Created with dispatch result"}
                }
            }
        },
        "/notifications/inbox": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Caller's inbox",
                "responses": {
                    "200": {"description": "Inbox entries"}
                }
            }
        },
        "/billing/charges": {
            "get": {
                "tags": ["Billing"],
                "summary": "List charges",
                "responses": {
                    "200": {"description": "Paginated charges"}
                }
            }
        },
        "/billing/charges/generate": {
            "post": {
                "tags": ["Billing"],
                "summary": "Generate recurring charges for a period",
                "responses": {
                    "200": {"description": "Generation result"}
                }
            }
        },
        "/billing/payments": {
            "post": {
                "tags": ["Billing"],
                "summary": "Register a payment",
                "responses": {
                    "201": {"description": "Payment with updated charge"},
                    "409": {"description": "Charge not payable"}
                }
            }
        },
        "/maintenance/requests": {
            "post": {
                "tags": ["Maintenance"],
                "summary": "File a maintenance request",
                "responses": {
                    "201": {"description": "Created"}
                }
            },
            "get": {
                "tags": ["Maintenance"],
                "summary": "List maintenance requests",
                "responses": {
                    "200": {"description": "Paginated requests"}
                }
            }
        },
        "/security/visitors": {
            "post": {
                "tags": ["Security"],
                "summary": "Register a visitor entry",
                "responses": {
                    "201": {"description": "Created"}
                }
            }
        },
        "/security/ai/recognize-face": {
            "post": {
                "tags": ["Security"],
                "summary": "Run face recognition on a camera frame",
                "responses": {
                    "200": {"description": "Match result"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
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
