package models

// Analytics is the aggregate snapshot returned by the backend analytics
// endpoint. ConversationsPerDay maps day keys ("2024-01-01") to counts.
type Analytics struct {
	TotalClients          int            `json:"total_clients"`
	ActiveClients         int            `json:"active_clients"`
	TotalAppointments     int            `json:"total_appointments"`
	ScheduledAppointments int            `json:"scheduled_appointments"`
	TotalConversations    int            `json:"total_conversations"`
	TotalTokens           int            `json:"total_tokens"`
	ConversationsPerDay   map[string]int `json:"conversations_per_day"`
}
