package respond

// ChatMessageRespond 消息历史回放条目
type ChatMessageRespond struct {
	UserName string `json:"userName"`
	Text     string `json:"text"`
	SentAt   string `json:"sentAt"` // "2006-01-02 15:04:05"
}
