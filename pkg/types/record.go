package types

import "time"

// RecordType represents the kinds of workflow records flowing through the portal
type RecordType string

const (
	RecordTypeOrder        RecordType = "order"
	RecordTypeShipment     RecordType = "shipment"
	RecordTypeVerification RecordType = "verification_request"
)

// RecordStatus represents the business status of a workflow record
type RecordStatus string

const (
	RecordStatusDraft     RecordStatus = "draft"
	RecordStatusSubmitted RecordStatus = "submitted"
	RecordStatusApproved  RecordStatus = "approved"
	RecordStatusShipped   RecordStatus = "shipped"
	RecordStatusDelivered RecordStatus = "delivered"
	RecordStatusDenied    RecordStatus = "denied"
)

// WorkflowRecord represents an order, shipment, or verification request.
// The ownership fields are a snapshot of the hierarchy taken when the
// record was created and are the only fields authorization may consult.
type WorkflowRecord struct {
	ID                    string       `json:"id" db:"id"`
	RecordType            RecordType   `json:"record_type" db:"record_type"`
	Status                RecordStatus `json:"status" db:"status"`
	OwnerDoctorID         string       `json:"owner_doctor_id" db:"owner_doctor_id"`
	SalesRepID            string       `json:"sales_rep_id" db:"sales_rep_id"`
	DistributorID         string       `json:"distributor_id" db:"distributor_id"`
	RegionalDistributorID string       `json:"regional_distributor_id" db:"regional_distributor_id"`
	CreatedBy             string       `json:"created_by" db:"created_by"`
	PatientRef            string       `json:"patient_ref,omitempty" db:"patient_ref"`
	Summary               string       `json:"summary,omitempty" db:"summary"`
	Carrier               string       `json:"carrier,omitempty" db:"carrier"`
	Region                string       `json:"region,omitempty" db:"region"`
	CreatedAt             time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at" db:"updated_at"`
}

// RecordSearchCriteria represents business narrowing applied to record
// listings before the visibility filter runs
type RecordSearchCriteria struct {
	RecordType RecordType   `json:"record_type,omitempty"`
	Status     RecordStatus `json:"status,omitempty"`
	Search     string       `json:"search,omitempty"`
	SortBy     string       `json:"sort_by,omitempty"`
	SortOrder  string       `json:"sort_order,omitempty"`
}

// PaginationMeta describes the page of results returned after filtering
type PaginationMeta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}
