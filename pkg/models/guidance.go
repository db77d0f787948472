package models

// GuidancePreview is a generated guidance draft returned for editing before
// it is published to the help center.
type GuidancePreview struct {
	FlowID   string `json:"flowId"`
	FlowName string `json:"flowName"`
	Content  string `json:"content"`
}

// GuidanceResult records the outcome of publishing one guidance article.
type GuidanceResult struct {
	FlowID    string `json:"flowId"`
	Title     string `json:"title"`
	ArticleID int64  `json:"articleId,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}
