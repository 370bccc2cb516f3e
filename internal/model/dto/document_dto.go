package dto

// DocumentInfo 文档信息
type DocumentInfo struct {
	ID          int64  `json:"id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	URL         string `json:"url,omitempty"`
	CreatedAt   string `json:"created_at"`
}
