package api

// Classification categories as returned by the backend.
const (
	CategoryJobAds        = "Job Ads"
	CategoryJobUpdate     = "Job Update"
	CategoryFakeJob       = "Fake Job"
	CategoryWork          = "Work"
	CategorySocial        = "Social"
	CategoryPromotions    = "Promotions"
	CategorySpam          = "Spam"
	CategoryUpdates       = "Updates"
	CategoryUncategorized = "Uncategorized"
)

// Categories lists every category the classifier may assign, excluding the
// Uncategorized fallback.
var Categories = []string{
	CategoryJobAds,
	CategoryJobUpdate,
	CategoryFakeJob,
	CategoryWork,
	CategorySocial,
	CategoryPromotions,
	CategorySpam,
	CategoryUpdates,
}

// Message is an inbox message. Category, Summary and IsFake are filled in by
// classification after the message has been fetched.
type Message struct {
	ID       string `json:"id"`
	Subject  string `json:"subject,omitempty"`
	Sender   string `json:"sender,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
	Body     string `json:"body,omitempty"`
	Category string `json:"category,omitempty"`
	Summary  string `json:"summary,omitempty"`
	IsFake   bool   `json:"is_fake"`
}

// Classified reports whether any enrichment field has been set.
func (m Message) Classified() bool {
	return m.Category != "" || m.Summary != ""
}

// Text returns the body, falling back to the snippet.
func (m Message) Text() string {
	if m.Body != "" {
		return m.Body
	}
	return m.Snippet
}

// ClassifyRequest is the body of POST /classify.
type ClassifyRequest struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Sender    string `json:"sender"`
	MessageID string `json:"message_id"`
}

// ClassifyRequestFor builds the classification request for m.
func ClassifyRequestFor(m Message) ClassifyRequest {
	return ClassifyRequest{
		Subject:   m.Subject,
		Body:      m.Text(),
		Sender:    m.Sender,
		MessageID: m.ID,
	}
}

// Classification is the response of POST /classify.
type Classification struct {
	Category string `json:"category"`
	Summary  string `json:"summary"`
	IsFake   bool   `json:"is_fake"`
}

// ReplyRequest is the body of POST /generate-reply and POST /send-reply.
type ReplyRequest struct {
	Subject   string  `json:"subject"`
	Body      string  `json:"body"`
	To        string  `json:"to"`
	ContextID *string `json:"context_id"`
}

// ReplyResponse is the response of POST /generate-reply.
type ReplyResponse struct {
	Reply string `json:"reply"`
}

// SendResult is the response of POST /send-reply.
type SendResult struct {
	Status string `json:"status"`
}

// StatusSent is SendResult.Status for a delivered reply.
const StatusSent = "success"

// ErrorResponse is the backend's error body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
