package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS Platform API",
        "description": "Tenant router and per-university LMS instances",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Router", "description": "Tenant registry, routing table and provisioning"},
        {"name": "Inspection", "description": "Registry and routing consistency"},
        {"name": "Users", "description": "Tenant users and access control"},
        {"name": "Courses", "description": "Courses, instructors and quizzes"},
        {"name": "Grades", "description": "Grade recording and reporting"},
        {"name": "PreProvision", "description": "Roster import and identity linking"}
    ],
    "paths": {
        "/universities": {
            "post": {
                "tags": ["Router"],
                "summary": "Provision a university",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterUniversityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid subdomain", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not a router admin", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Subdomain taken", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tenants": {
            "get": {
                "tags": ["Router"],
                "summary": "List tenants",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Router"],
                "summary": "Register an existing instance as a tenant",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterTenantRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Router"],
                "summary": "Remove every tenant and route",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/tenants/{id}": {
            "get": {
                "tags": ["Router"],
                "summary": "Get tenant",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Router"],
                "summary": "Rename or (de)activate a tenant",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTenantRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {
                "tags": ["Router"],
                "summary": "Remove tenant and its route",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Removed"}}
            }
        },
        "/routes": {
            "get": {
                "tags": ["Router"],
                "summary": "List routing entries",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/routes/{subdomain}": {
            "get": {
                "tags": ["Router"],
                "summary": "Resolve a subdomain to its instance",
                "parameters": [{"name": "subdomain", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown subdomain", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/template": {
            "get": {
                "tags": ["Router"],
                "summary": "Current template configuration",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "put": {
                "tags": ["Router"],
                "summary": "Point provisioning at a template instance",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConfigureTemplateRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/stats": {
            "get": {
                "tags": ["Router"],
                "summary": "Router statistics",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/inspect/registry": {
            "get": {
                "tags": ["Inspection"],
                "summary": "Inspect the tenant registry",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/inspect/routing": {
            "get": {
                "tags": ["Inspection"],
                "summary": "Inspect the routing table",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/inspect/system": {
            "get": {
                "tags": ["Inspection"],
                "summary": "Cross-check registry and routing table",
                "description": "Sets X-Data-Consistency: false when orphans are found.",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/me": {
            "get": {
                "tags": ["Users"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Anonymous caller", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Register a user",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/users/{id}/role": {
            "put": {
                "tags": ["Users"],
                "summary": "Change a user's role",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid role", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create a course",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCourseRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/grades": {
            "post": {
                "tags": ["Grades"],
                "summary": "Record a grade",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordGradeRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/grades/bulk": {
            "post": {
                "tags": ["Grades"],
                "summary": "Record many grades",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Every row failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}/grades/export": {
            "get": {
                "tags": ["Grades"],
                "summary": "Export course grades",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/students/{id}/courses/{courseId}/average/weighted": {
            "get": {
                "tags": ["Grades"],
                "summary": "Weighted average with default weights",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "courseId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/preprovision/verification": {
            "post": {
                "tags": ["PreProvision"],
                "summary": "Send a verification code",
                "description": "The code is delivered out of band and never returned.",
                "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/preprovision/verify": {
            "post": {
                "tags": ["PreProvision"],
                "summary": "Verify an email with its code",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyEmailRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/preprovision/link": {
            "post": {
                "tags": ["PreProvision"],
                "summary": "Link the caller's identity to a verified record",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Linked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "definitions": {
        "RegisterUniversityRequest": {
            "type": "object",
            "properties": {
                "subdomain": {"type": "string"},
                "university_name": {"type": "string"},
                "admin_identity": {"type": "string"}
            },
            "required": ["subdomain", "university_name", "admin_identity"]
        },
        "RegisterTenantRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "domain": {"type": "string"},
                "instance_id": {"type": "string"}
            },
            "required": ["id", "name", "domain", "instance_id"]
        },
        "UpdateTenantRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "is_active": {"type": "boolean"}
            }
        },
        "ConfigureTemplateRequest": {
            "type": "object",
            "properties": {
                "template_instance_id": {"type": "string"},
                "template_version": {"type": "string"},
                "auto_update": {"type": "boolean"}
            },
            "required": ["template_instance_id"]
        },
        "CreateCourseRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"}
            },
            "required": ["title"]
        },
        "RecordGradeRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "score": {"type": "number"},
                "max_score": {"type": "number"},
                "grade_type": {"type": "string", "enum": ["QUIZ", "ASSIGNMENT", "PARTICIPATION", "FINAL", "MIDTERM", "PROJECT", "LAB", "HOMEWORK", "EXTRA_CREDIT"]},
                "feedback": {"type": "string"}
            },
            "required": ["student_id", "course_id", "grade_type"]
        },
        "VerifyEmailRequest": {
            "type": "object",
            "properties": {
                "university_id": {"type": "string"},
                "email": {"type": "string"},
                "verification_code": {"type": "string"}
            },
            "required": ["university_id", "email", "verification_code"]
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
