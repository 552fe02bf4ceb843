package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Lektorek API",
        "description": "Tutor availability and booking engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Availability", "description": "Weekly schedules and date overrides"},
        {"name": "Bookings", "description": "Booking lifecycle"},
        {"name": "Balance", "description": "Internal ledger"},
        {"name": "Pricing", "description": "Teacher price tables"},
        {"name": "Notifications", "description": "In-app notifications"},
        {"name": "Exports", "description": "CRM exports"}
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/teachers/{id}/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "Public half-hour availability calendar",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Teacher not found"}
                }
            }
        },
        "/crm/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "List the acting teacher's recurring blocks",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Availability"],
                "summary": "Replace the recurring weekly schedule",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetAvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/crm/availability/{id}": {
            "delete": {
                "tags": ["Availability"],
                "summary": "Delete one recurring block",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/crm/day-override": {
            "post": {
                "tags": ["Availability"],
                "summary": "Block or restore a single date",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DayOverrideRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/crm/overrides": {
            "get": {
                "tags": ["Availability"],
                "summary": "List date overrides in a range",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "required": true, "type": "string"},
                    {"name": "to", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/crm/pricing": {
            "get": {
                "tags": ["Pricing"],
                "summary": "Price table for the acting teacher",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Pricing"],
                "summary": "Replace the price table",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetPricingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/crm/bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Teacher week view with student identity",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "required": true, "type": "string"},
                    {"name": "to", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/crm/stats": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Booking counters for the acting teacher",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/crm/export/bookings": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export bookings as CSV",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "required": true, "type": "string"},
                    {"name": "to", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/crm/export/schedule": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export weekly schedule as PDF",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "required": true, "type": "string"},
                    {"name": "to", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an export via signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List bookings visible to the actor",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Bookings"],
                "summary": "Book a lesson slot",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBookingRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Slot unavailable, mode not allowed or insufficient funds"},
                    "409": {"description": "Slot already booked or student double booking"}
                }
            }
        },
        "/bookings/{id}/cancel": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Cancel an active booking",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CancelRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Booking is not active"}
                }
            }
        },
        "/bookings/{id}/status": {
            "patch": {
                "tags": ["Bookings"],
                "summary": "Move a booking to a terminal status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Transition not allowed"}
                }
            }
        },
        "/bookings/{id}/notes": {
            "patch": {
                "tags": ["Bookings"],
                "summary": "Replace the notes on a booking",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateNotesRequest"}}
                ],
                "responses": {
                    "204": {"description": "Updated"}
                }
            }
        },
        "/balance": {
            "get": {
                "tags": ["Balance"],
                "summary": "Current balance",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/balance/deposit": {
            "post": {
                "tags": ["Balance"],
                "summary": "Top up the balance",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AmountRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/balance/withdraw": {
            "post": {
                "tags": ["Balance"],
                "summary": "Withdraw earned funds",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AmountRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Insufficient funds"}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications, newest first",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "unread", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/notifications/{id}/read": {
            "post": {
                "tags": ["Notifications"],
                "summary": "Mark a notification as read",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Marked"}
                }
            }
        },
        "/users/{id}": {
            "delete": {
                "tags": ["Auth"],
                "summary": "Delete a user and all their data (admin)",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "SetAvailabilityRequest": {
            "type": "object",
            "properties": {
                "blocks": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/BlockRequest"}
                }
            }
        },
        "BlockRequest": {
            "type": "object",
            "properties": {
                "day_of_week": {"type": "integer", "minimum": 0, "maximum": 6},
                "start_time": {"type": "string"},
                "end_time": {"type": "string"},
                "teaching_mode": {"type": "string", "enum": ["online", "in_person", "both"]}
            },
            "required": ["start_time", "end_time", "teaching_mode"]
        },
        "DayOverrideRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "is_free": {"type": "boolean"}
            },
            "required": ["date"]
        },
        "SetPricingRequest": {
            "type": "object",
            "properties": {
                "price_online": {"type": "number"},
                "price_in_person": {"type": "number"}
            },
            "required": ["price_online", "price_in_person"]
        },
        "CreateBookingRequest": {
            "type": "object",
            "properties": {
                "teacher_id": {"type": "string"},
                "booking_date": {"type": "string"},
                "time_slot": {"type": "string"},
                "lesson_mode": {"type": "string", "enum": ["online", "in_person"]},
                "notes": {"type": "string"}
            },
            "required": ["teacher_id", "booking_date", "time_slot", "lesson_mode"]
        },
        "CancelRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "UpdateStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "reason": {"type": "string"}
            },
            "required": ["status"]
        },
        "UpdateNotesRequest": {
            "type": "object",
            "properties": {
                "notes": {"type": "string"}
            }
        },
        "AmountRequest": {
            "type": "object",
            "properties": {
                "amount": {"type": "number"}
            },
            "required": ["amount"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
