package remote

// JSON schemas for collaborator responses. Engine output is untrusted: every
// response body is validated against its schema before decoding, and a
// violation is reported as a stage failure rather than propagated downstream.

const analysisSchema = `{
	"type": "object",
	"required": ["transcript_id", "intent", "summary", "risk_scores"],
	"properties": {
		"id": {"type": "string"},
		"transcript_id": {"type": "string", "minLength": 1},
		"intent": {"type": "string", "minLength": 1},
		"summary": {"type": "string"},
		"risk_scores": {
			"type": "object",
			"required": ["delinquency", "churn", "compliance"],
			"properties": {
				"delinquency": {"type": "number", "minimum": 0, "maximum": 1},
				"churn": {"type": "number", "minimum": 0, "maximum": 1},
				"compliance": {"type": "number", "minimum": 0, "maximum": 1}
			}
		}
	}
}`

const planSchema = `{
	"type": "object",
	"required": ["analysis_id", "transcript_id", "borrower", "advisor", "supervisor", "leadership"],
	"properties": {
		"id": {"type": "string"},
		"analysis_id": {"type": "string", "minLength": 1},
		"transcript_id": {"type": "string", "minLength": 1},
		"auto_executable": {"type": "boolean"},
		"borrower": {"$ref": "#/definitions/sub_plan"},
		"advisor": {"$ref": "#/definitions/sub_plan"},
		"supervisor": {"$ref": "#/definitions/sub_plan"},
		"leadership": {"$ref": "#/definitions/sub_plan"}
	},
	"definitions": {
		"sub_plan": {
			"type": "object",
			"required": ["summary"],
			"properties": {
				"summary": {"type": "string"},
				"action_items": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["description", "tool"],
						"properties": {
							"description": {"type": "string", "minLength": 1},
							"tool": {"type": "string", "minLength": 1}
						}
					}
				}
			}
		}
	}
}`

const workflowsSchema = `{
	"type": "object",
	"required": ["workflows"],
	"properties": {
		"workflows": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["workflow_type", "title", "action_items"],
				"properties": {
					"workflow_type": {"type": "string", "enum": ["BORROWER", "ADVISOR", "SUPERVISOR", "LEADERSHIP"]},
					"title": {"type": "string", "minLength": 1},
					"action_items": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["description", "tool"],
							"properties": {
								"description": {"type": "string", "minLength": 1},
								"tool": {"type": "string", "minLength": 1}
							}
						}
					}
				}
			}
		}
	}
}`

const classificationSchema = `{
	"type": "object",
	"required": ["risk_level", "approval_route"],
	"properties": {
		"risk_level": {"type": "string", "enum": ["LOW", "MEDIUM", "HIGH"]},
		"approval_route": {"type": "string", "minLength": 1}
	}
}`
