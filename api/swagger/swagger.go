package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable Engine API",
        "description": "Timetable conflict checking, generation and draft publication",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Timetable",
            "description": "Conflict checks and timetable views"
        },
        {
            "name": "Timetable Lifecycle",
            "description": "Draft review, publication and rollback"
        },
        {
            "name": "Timetable Generation",
            "description": "Backtracking timetable generation"
        },
        {
            "name": "Class Group Schedules",
            "description": "Materialised class group schedules"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "Dependency unavailable"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": [
                    "text/plain"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/timetable/conflicts": {
            "post": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Check a candidate placement against the published timetable",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ConflictCheckRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Conflict report",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error"
                    }
                }
            }
        },
        "/timetable/validate-entry": {
            "post": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Validate whether an entry may be saved",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ConflictCheckRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/timetable/entries": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "List timetable entries visible to the caller",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "termId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "draftVersion",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "publishedOnly",
                        "in": "query",
                        "type": "boolean",
                        "required": false
                    },
                    {
                        "name": "day",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "classGroupId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "trainerId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "departmentId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "roomId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/timetable/my-schedule": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Caller's published schedule laid out per date",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "termId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "type": "string",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Only trainers and trainees"
                    }
                }
            }
        },
        "/rooms/{id}/availability": {
            "get": {
                "tags": [
                    "Timetable"
                ],
                "summary": "Published bookings of a room on a date",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "date",
                        "in": "query",
                        "type": "string",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Room not found"
                    }
                }
            }
        },
        "/timetable/draft-versions": {
            "get": {
                "tags": [
                    "Timetable Lifecycle"
                ],
                "summary": "List draft versions newest first",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "termId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    },
                    {
                        "name": "includePublished",
                        "in": "query",
                        "type": "boolean",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/timetable/draft-summary": {
            "get": {
                "tags": [
                    "Timetable Lifecycle"
                ],
                "summary": "Summarise a draft version",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "draftVersion",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "termId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Unknown version"
                    }
                }
            }
        },
        "/timetable/versions/{version}/status": {
            "get": {
                "tags": [
                    "Timetable Lifecycle"
                ],
                "summary": "Entry counts and active flag of a version; unknown versions report zeros",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "version",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "termId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/timetable/publish-draft": {
            "post": {
                "tags": [
                    "Timetable Lifecycle"
                ],
                "summary": "Publish a draft version as the single active timetable",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/DraftVersionRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Unknown version"
                    }
                }
            }
        },
        "/timetable/discard-draft": {
            "post": {
                "tags": [
                    "Timetable Lifecycle"
                ],
                "summary": "Delete the draft rows of a version",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/DraftVersionRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Version has no draft entries"
                    }
                }
            }
        },
        "/timetable/revert-to-draft": {
            "post": {
                "tags": [
                    "Timetable Lifecycle"
                ],
                "summary": "Flip a published version back to draft",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/DraftVersionRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Unknown version"
                    }
                }
            }
        },
        "/timetable/generate": {
            "post": {
                "tags": [
                    "Timetable Generation"
                ],
                "summary": "Generate a draft timetable",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "async",
                        "in": "query",
                        "type": "boolean",
                        "required": false
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/GenerateTimetableRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Generation result",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "202": {
                        "description": "Task queued",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "503": {
                        "description": "Queue unavailable"
                    }
                }
            }
        },
        "/timetable/generate/task-status": {
            "get": {
                "tags": [
                    "Timetable Generation"
                ],
                "summary": "Poll a queued generation task",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "task_id",
                        "in": "query",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Unknown task"
                    }
                }
            }
        },
        "/class-group-schedules/{classGroupId}": {
            "get": {
                "tags": [
                    "Class Group Schedules"
                ],
                "summary": "Materialised weekly schedule of a class group",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "classGroupId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "termId",
                        "in": "query",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found"
                    }
                }
            }
        },
        "/class-group-schedules/{classGroupId}/regenerate": {
            "post": {
                "tags": [
                    "Class Group Schedules"
                ],
                "summary": "Rebuild a class group schedule from published entries",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "classGroupId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "termId",
                        "in": "query",
                        "type": "string",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/class-group-schedules/{classGroupId}/export": {
            "get": {
                "tags": [
                    "Class Group Schedules"
                ],
                "summary": "Download a class group schedule",
                "produces": [
                    "text/csv",
                    "application/pdf"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "classGroupId",
                        "in": "path",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "termId",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File download"
                    }
                }
            }
        },
        "/trainer-availability/mine": {
            "get": {
                "tags": [
                    "Scheduling Inputs"
                ],
                "summary": "Availability windows of the calling trainer",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Caller is not a trainer"
                    }
                }
            }
        },
        "/trainer-availability/bulk": {
            "post": {
                "tags": [
                    "Scheduling Inputs"
                ],
                "summary": "Declare availability windows; each item is stored independently",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "array",
                            "items": {
                                "$ref": "#/definitions/AvailabilityWindowRequest"
                            }
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "All items stored",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Some items were rejected; data lists created and errors"
                    }
                }
            }
        },
        "/timetable-settings": {
            "get": {
                "tags": [
                    "Scheduling Inputs"
                ],
                "summary": "Timetable settings of a term, or the defaults when none are stored",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "termId",
                        "in": "query",
                        "type": "string",
                        "required": true
                    },
                    {
                        "name": "schoolId",
                        "in": "query",
                        "type": "string",
                        "required": false
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "put": {
                "tags": [
                    "Scheduling Inputs"
                ],
                "summary": "Create or replace the timetable settings of a term",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TimetableSettingsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "403": {
                        "description": "Caller is not an administrator"
                    }
                }
            }
        }
    },
    "definitions": {
        "AvailabilityWindowRequest": {
            "type": "object",
            "properties": {
                "trainer_id": {
                    "type": "string"
                },
                "day_of_week": {
                    "type": "string"
                },
                "start_time": {
                    "type": "string"
                },
                "end_time": {
                    "type": "string"
                }
            }
        },
        "TimetableSettingsRequest": {
            "type": "object",
            "properties": {
                "term_id": {
                    "type": "string"
                },
                "school_id": {
                    "type": "string"
                },
                "working_days": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "day_start": {
                    "type": "string"
                },
                "day_end": {
                    "type": "string"
                },
                "slot_minutes": {
                    "type": "integer"
                },
                "breaks": {
                    "type": "array",
                    "items": {
                        "type": "object"
                    }
                },
                "max_sessions_per_day": {
                    "type": "integer"
                }
            }
        },
        "ConflictCheckRequest": {
            "type": "object",
            "properties": {
                "day_of_week": {
                    "type": "string"
                },
                "start_time": {
                    "type": "string"
                },
                "end_time": {
                    "type": "string"
                },
                "room_id": {
                    "type": "string"
                },
                "trainer_id": {
                    "type": "string"
                },
                "class_group_id": {
                    "type": "string"
                },
                "course_enrollment_id": {
                    "type": "string"
                },
                "exclude_entry_id": {
                    "type": "string"
                }
            }
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "properties": {
                "term_id": {
                    "type": "string"
                },
                "class_group_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "department_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "school_id": {
                    "type": "string"
                },
                "dry_run": {
                    "type": "boolean"
                }
            }
        },
        "DraftVersionRequest": {
            "type": "object",
            "properties": {
                "draft_version": {
                    "type": "string"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
