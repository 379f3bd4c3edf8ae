package api

// AnswerRequest is the body of POST /v1/answers. Questions are answered in
// the order given; blank lines are skipped.
type AnswerRequest struct {
	Questions []string `json:"questions"`
}

type AnswerItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type AnswerResponse struct {
	ID        string       `json:"id"`
	Object    string       `json:"object"`
	CreatedAt int64        `json:"created_at"`
	Answers   []AnswerItem `json:"answers"`
}

type ChatTurn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type SessionResponse struct {
	ID        string     `json:"id"`
	Object    string     `json:"object"`
	CreatedAt int64      `json:"created_at"`
	History   []ChatTurn `json:"history"`
}

type DeleteSessionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// ChatRequest is the body of POST /v1/chat: one stateless turn with the
// caller holding the history.
type ChatRequest struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"history,omitempty"`
}

type ChatResponse struct {
	ID        string     `json:"id"`
	Object    string     `json:"object"`
	CreatedAt int64      `json:"created_at"`
	Reply     string     `json:"reply"`
	History   []ChatTurn `json:"history"`
}

// MessageRequest is the body of POST /v1/sessions/:id/messages.
type MessageRequest struct {
	Message string `json:"message"`
}

type MessageResponse struct {
	ID        string     `json:"id"`
	Object    string     `json:"object"`
	SessionID string     `json:"session_id"`
	CreatedAt int64      `json:"created_at"`
	Reply     string     `json:"reply"`
	History   []ChatTurn `json:"history"`
}

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
