package records

import "baserow-bridge/internal/baserow"

// Record is one validated row as delivered to the webhook.
type Record struct {
	Domain           string      `json:"domain"`
	RecordID         interface{} `json:"record_id"`
	Status           interface{} `json:"status"`
	BaserowData      baserow.Row `json:"baserow_data"`
	Email            string      `json:"email,omitempty"`
	OrganizationName string      `json:"organization_name,omitempty"`
}
