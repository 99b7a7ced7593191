package httpdto

type SelectConversationRequest struct {
	Kind string `json:"kind" binding:"required"`
	ID   string `json:"id" binding:"required"`
}

type SendTextRequest struct {
	Content string `json:"content" binding:"required"`
}

type SendFileResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}
