package noaa

// Advisory is an externally issued warning mirrored verbatim from the
// upstream feed, distinct from a locally computed alert.
type Advisory struct {
	ID          string   `json:"alert_id"`
	Event       string   `json:"event"`
	Severity    string   `json:"severity"`
	Certainty   string   `json:"certainty"`
	Urgency     string   `json:"urgency"`
	Headline    string   `json:"headline"`
	Description string   `json:"description"`
	Instruction string   `json:"instruction,omitempty"`
	Areas       []string `json:"areas"`
	Effective   string   `json:"effective"`
	Expires     string   `json:"expires"`
	Sender      string   `json:"sender"`
	Status      string   `json:"status"`
	MessageType string   `json:"message_type"`
}

// Severe reports whether the advisory warrants elevated broadcast priority.
func (a *Advisory) Severe() bool {
	return a.Severity == "Extreme" || a.Severity == "Severe"
}
