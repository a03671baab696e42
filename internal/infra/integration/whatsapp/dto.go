package whatsapp

type SendMessageInput struct {
	PhoneNumber  string
	TemplateName string
	Parameters   []string
}

type SendMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Contacts []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Error *ErrorResponse `json:"error"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

// State is what the adapter keeps in IntegrationState.Data.
type State struct {
	To               string `json:"To"`
	IntakeMessageID  string `json:"IntakeMessageId,omitempty"`
	ClosingMessageID string `json:"ClosingMessageId,omitempty"`
}
