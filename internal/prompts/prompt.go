package prompts

// CoreID is the prompt_id of the core system prompt. It is edited on its own
// and never listed as a modifier.
const CoreID = 0

// Status is a modifier's activation state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Prompt is one record from the prompts API.
type Prompt struct {
	ID          int    `json:"prompt_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Sequence    int    `json:"sequence"`
	Status      Status `json:"status"`
}

// IsCore reports whether p is the core system prompt.
func (p Prompt) IsCore() bool { return p.ID == CoreID }

// Active reports whether the modifier is applied during generation.
func (p Prompt) Active() bool { return p.Status == StatusActive }

// NewPrompt is the body of a create request.
type NewPrompt struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Sequence    int    `json:"sequence"`
	Status      Status `json:"status"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Content     *string `json:"content,omitempty"`
	Sequence    *int    `json:"sequence,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Content == nil &&
		p.Sequence == nil && p.Status == nil
}

func ptr[T any](v T) *T { return &v }
