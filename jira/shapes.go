package jira

import (
	"strings"

	"github.com/randalmurphal/trackerkit/schema"
)

// Shape ids registered with the client's schema validator.
const (
	shapeIssue        = "issue"
	shapeSearch       = "search"
	shapeSearchJQL    = "search_jql"
	shapeCreated      = "created_issue"
	shapeTransitions  = "transitions"
	shapeComment      = "comment"
	shapeComments     = "comments"
	shapeProject      = "project"
	shapeProjects     = "projects"
	shapeProjectPage  = "project_page"
	shapeUser         = "user"
	shapeUsers        = "users"
	shapeServerInfo   = "server_info"
	shapeIssueTypes   = "issue_types"
	shapePriorities   = "priorities"
	shapeLinkTypes    = "link_types"
	shapeRemoteLinks  = "remote_links"
	shapeIssueLink    = "issue_link"
	shapeRemoteLinkID = "remote_link_created"
	shapeBoards       = "boards"
	shapeSprints      = "sprints"
	shapeWebhookEvent = "webhook_event"
)

// defs are shared by every shape; each document carries its own copy so
// shapes compile independently.
const defs = `"$defs": {
	"id": {"type": ["string", "integer"]},
	"user": {
		"type": ["object", "null"],
		"properties": {
			"accountId": {"type": "string"},
			"name": {"type": "string"},
			"displayName": {"type": ["string", "null"]},
			"emailAddress": {"type": ["string", "null"]},
			"active": {"type": "boolean"}
		}
	},
	"named": {
		"type": ["object", "null"],
		"properties": {
			"id": {"$ref": "#/$defs/id"},
			"name": {"type": "string"}
		}
	},
	"status": {
		"type": ["object", "null"],
		"required": ["name"],
		"properties": {
			"id": {"$ref": "#/$defs/id"},
			"name": {"type": "string"},
			"statusCategory": {
				"type": ["object", "null"],
				"properties": {
					"key": {"type": "string"},
					"name": {"type": "string"}
				}
			}
		}
	},
	"comment": {
		"type": "object",
		"required": ["id"],
		"properties": {
			"id": {"$ref": "#/$defs/id"},
			"author": {"$ref": "#/$defs/user"},
			"created": {"type": "string"},
			"updated": {"type": "string"}
		}
	},
	"issue": {
		"type": "object",
		"required": ["id", "key", "fields"],
		"properties": {
			"id": {"type": "string"},
			"key": {"type": "string"},
			"fields": {
				"type": "object",
				"required": ["summary", "status"],
				"properties": {
					"summary": {"type": "string"},
					"status": {"allOf": [{"$ref": "#/$defs/status"}, {"type": "object"}]},
					"issuetype": {"$ref": "#/$defs/named"},
					"priority": {"$ref": "#/$defs/named"},
					"assignee": {"$ref": "#/$defs/user"},
					"reporter": {"$ref": "#/$defs/user"},
					"labels": {"type": ["array", "null"], "items": {"type": "string"}},
					"subtasks": {"type": ["array", "null"], "items": {"type": "object"}},
					"issuelinks": {"type": ["array", "null"], "items": {"type": "object"}},
					"attachment": {"type": ["array", "null"], "items": {"type": "object"}},
					"comment": {
						"type": ["object", "null"],
						"properties": {
							"comments": {"type": "array", "items": {"$ref": "#/$defs/comment"}}
						}
					},
					"created": {"type": ["string", "null"]},
					"updated": {"type": ["string", "null"]}
				}
			}
		}
	}
}`

var shapes = map[string]string{
	shapeIssue: `{"$ref": "#/$defs/issue"}`,
	shapeSearch: `{
		"type": "object",
		"required": ["issues"],
		"properties": {
			"startAt": {"type": "integer"},
			"total": {"type": "integer"},
			"issues": {"type": "array", "items": {"$ref": "#/$defs/issue"}}
		}
	}`,
	shapeSearchJQL: `{
		"type": "object",
		"required": ["issues"],
		"properties": {
			"nextPageToken": {"type": ["string", "null"]},
			"isLast": {"type": "boolean"},
			"issues": {"type": "array", "items": {"$ref": "#/$defs/issue"}}
		}
	}`,
	shapeCreated: `{
		"type": "object",
		"required": ["id", "key"],
		"properties": {"id": {"type": "string"}, "key": {"type": "string"}}
	}`,
	shapeTransitions: `{
		"type": "object",
		"required": ["transitions"],
		"properties": {
			"transitions": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "name"],
					"properties": {
						"id": {"type": "string"},
						"name": {"type": "string"},
						"to": {"$ref": "#/$defs/status"}
					}
				}
			}
		}
	}`,
	shapeComment: `{"$ref": "#/$defs/comment"}`,
	shapeComments: `{
		"type": "object",
		"required": ["comments"],
		"properties": {
			"total": {"type": "integer"},
			"comments": {"type": "array", "items": {"$ref": "#/$defs/comment"}}
		}
	}`,
	shapeProject: `{
		"type": "object",
		"required": ["id", "key"],
		"properties": {
			"id": {"type": "string"},
			"key": {"type": "string"},
			"name": {"type": "string"},
			"lead": {"$ref": "#/$defs/user"}
		}
	}`,
	shapeProjects: `{
		"type": "array",
		"items": {"type": "object", "required": ["id", "key"]}
	}`,
	shapeProjectPage: `{
		"type": "object",
		"required": ["values"],
		"properties": {
			"isLast": {"type": "boolean"},
			"values": {"type": "array", "items": {"type": "object", "required": ["id", "key"]}}
		}
	}`,
	shapeUser: `{"allOf": [{"$ref": "#/$defs/user"}, {"type": "object"}]}`,
	shapeUsers: `{"type": "array", "items": {"$ref": "#/$defs/user"}}`,
	shapeServerInfo: `{
		"type": "object",
		"required": ["version"],
		"properties": {
			"baseUrl": {"type": "string"},
			"version": {"type": "string"},
			"deploymentType": {"type": "string"}
		}
	}`,
	shapeIssueTypes: `{"type": "array", "items": {"type": "object", "required": ["id", "name"]}}`,
	shapePriorities: `{"type": "array", "items": {"type": "object", "required": ["id", "name"]}}`,
	shapeLinkTypes: `{
		"type": "object",
		"required": ["issueLinkTypes"],
		"properties": {
			"issueLinkTypes": {
				"type": "array",
				"items": {"type": "object", "required": ["name"]}
			}
		}
	}`,
	shapeRemoteLinks: `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["object"],
			"properties": {"object": {"type": "object", "required": ["url"]}}
		}
	}`,
	shapeIssueLink: `{
		"type": "object",
		"required": ["id", "type"],
		"properties": {
			"id": {"$ref": "#/$defs/id"},
			"type": {"type": "object", "required": ["name"]},
			"inwardIssue": {"type": "object", "required": ["key"], "properties": {"key": {"type": "string"}}},
			"outwardIssue": {"type": "object", "required": ["key"], "properties": {"key": {"type": "string"}}}
		}
	}`,
	shapeRemoteLinkID: `{
		"type": "object",
		"required": ["id"],
		"properties": {"id": {"type": "integer"}, "self": {"type": "string"}}
	}`,
	shapeBoards: `{
		"type": "object",
		"required": ["values"],
		"properties": {
			"isLast": {"type": "boolean"},
			"values": {"type": "array", "items": {"type": "object", "required": ["id", "name"]}}
		}
	}`,
	shapeSprints: `{
		"type": "object",
		"required": ["values"],
		"properties": {
			"isLast": {"type": "boolean"},
			"values": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "name", "state"],
					"properties": {"state": {"type": "string"}}
				}
			}
		}
	}`,
	shapeWebhookEvent: `{
		"type": "object",
		"required": ["webhookEvent"],
		"properties": {
			"webhookEvent": {"type": "string"},
			"issue": {"$ref": "#/$defs/issue"},
			"comment": {"$ref": "#/$defs/comment"}
		}
	}`,
}

// newShapeValidator compiles every wire shape the client reads.
func newShapeValidator() *schema.Validator {
	v := schema.New()
	for id, body := range shapes {
		v.MustRegister(id, []byte(withDefs(body)))
	}
	return v
}

// withDefs splices the shared $defs into a top-level schema object.
func withDefs(body string) string {
	body = strings.TrimSpace(body)
	return "{" + defs + ",\n" + strings.TrimPrefix(body, "{")
}
