package kommo

type CreateLeadInput struct {
	Title       string
	ContactName string
	Phone       string
	Email       string
	Tags        []string
}

type tag struct {
	Name string `json:"name"`
}

type idRef struct {
	ID int `json:"id"`
}

type leadEmbedded struct {
	Tags     []tag   `json:"tags,omitempty"`
	Contacts []idRef `json:"contacts,omitempty"`
}

type leadPayload struct {
	ID         int           `json:"id,omitempty"`
	Name       string        `json:"name,omitempty"`
	PipelineID int           `json:"pipeline_id,omitempty"`
	StatusID   int           `json:"status_id,omitempty"`
	Embedded   *leadEmbedded `json:"_embedded,omitempty"`
}

type fieldValue struct {
	Value    string `json:"value"`
	EnumCode string `json:"enum_code"`
}

type customField struct {
	FieldCode string       `json:"field_code"`
	Values    []fieldValue `json:"values"`
}

type contactPayload struct {
	Name         string        `json:"name"`
	CustomFields []customField `json:"custom_fields_values"`
}

type embeddedResponse struct {
	Embedded struct {
		Leads    []idRef `json:"leads"`
		Contacts []idRef `json:"contacts"`
	} `json:"_embedded"`
}

// State is what the adapter keeps in IntegrationState.Data.
type State struct {
	ContactID int `json:"ContactId"`
	LeadID    int `json:"LeadId"`
}
