package messagequeue

// SessionCompletedPayload is the schema for feedback.sessions.completed
// messages, published exactly once per recorded session.
type SessionCompletedPayload struct {
	SessionID     string                   `json:"session_id"`
	FeedbackID    string                   `json:"feedback_id"`
	CorrelationID string                   `json:"correlation_id"`
	Status        string                   `json:"status"`
	Results       []CriterionResultPayload `json:"results"`
}

// CriterionResultPayload is the per-criterion slice of a session event.
type CriterionResultPayload struct {
	Rank        int    `json:"rank"`
	CriterionID string `json:"criterion_id"`
	Status      string `json:"status"`
	ErrorKind   string `json:"error_kind,omitempty"`
	TokensTotal int    `json:"tokens_total"`
}

// SessionScoredPayload is the schema for feedback.sessions.scored messages.
type SessionScoredPayload struct {
	SessionID string `json:"session_id"`
	NPSScore  int    `json:"nps_score"`
}

// ProviderDegradedPayload is the schema for feedback.providers.degraded
// messages, published when a criterion call left the primary endpoint.
type ProviderDegradedPayload struct {
	ProviderID string `json:"provider_id"`
	Endpoint   string `json:"endpoint"`
	ErrorKind  string `json:"error_kind,omitempty"`
	UsedRoute  string `json:"used_route"` // "fallback" or "none"
}
