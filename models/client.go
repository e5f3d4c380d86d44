package models

// Client is a customer record managed from the console. The ID is an opaque
// string assigned by the backend; it is empty on create and never invented
// or reused on this side.
type Client struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Service string `json:"service,omitempty"`
	Status  string `json:"status,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Appointment references a Client by id, but the reference is weak: the
// backend assigns ids and nothing here validates the link.
type Appointment struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	ClientID    string `json:"client_id,omitempty"`
	Appointment string `json:"appointment,omitempty"`
	ServiceType string `json:"service_type,omitempty"`
	Status      string `json:"status,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

const (
	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"

	AppointmentStatusScheduled = "scheduled"
)
