package dto

// CreateQuizRequest 创建测验请求，带 document_id 时计入文档配额
type CreateQuizRequest struct {
	Title             string `json:"title" binding:"required,max=200"`
	SubjectsAndTopics string `json:"subjects_and_topics" binding:"required,max=2000"`
	Difficulty        string `json:"difficulty" binding:"required,oneof=easy medium hard"`
	QuestionCount     int    `json:"question_count" binding:"required,min=1,max=50"`
	DocumentID        *int64 `json:"document_id,omitempty"`
}

// QuestionInfo 题目，分享页不返回答案
type QuestionInfo struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex *int     `json:"correct_option_index,omitempty"`
	Explanation        string   `json:"explanation,omitempty"`
}

// QuizListItem 测验列表项
type QuizListItem struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"question_count"`
	HasFiles      bool   `json:"has_files"`
	IsPublic      bool   `json:"is_public"`
	CreatedAt     string `json:"created_at"`
}

// QuizDetail 测验详情
type QuizDetail struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	Title             string          `json:"title"`
	SubjectsAndTopics string          `json:"subjects_and_topics"`
	Difficulty        string          `json:"difficulty"`
	QuestionCount     int             `json:"question_count"`
	DocumentID        *int64          `json:"document_id,omitempty"`
	HasFiles          bool            `json:"has_files"`
	IsPublic          bool            `json:"is_public"`
	ShareToken        string          `json:"share_token,omitempty"`
	Questions         []*QuestionInfo `json:"questions"`
	CreatedAt         string          `json:"created_at"`
}

// ShareQuizResponse 分享响应
type ShareQuizResponse struct {
	ShareToken string `json:"share_token"`
	SharedAt   string `json:"shared_at"`
}

// SubmitAttemptRequest 提交答题，answers 按题目顺序给出选项下标，-1 表示未作答
type SubmitAttemptRequest struct {
	Answers []int `json:"answers" binding:"required"`
}

// QuizResultInfo 答题结果
type QuizResultInfo struct {
	ID        int64  `json:"id"`
	QuizID    int64  `json:"quiz_id"`
	Score     int    `json:"score"`
	Total     int    `json:"total"`
	Answers   []int  `json:"answers"`
	Correct   []bool `json:"correct"`
	CreatedAt string `json:"created_at"`
}
