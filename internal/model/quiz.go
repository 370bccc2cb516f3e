package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// 难度
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Question 单道选择题
type Question struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correct_option_index"`
	Explanation        string   `json:"explanation,omitempty"`
}

// Questions 以 JSON 存储的题目列表
type Questions []Question

func (q Questions) Value() (driver.Value, error) {
	if q == nil {
		return "[]", nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (q *Questions) Scan(value interface{}) error {
	return scanJSON(value, q)
}

// IntArray 用于 JSON 整数数组字段
type IntArray []int

func (a IntArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (a *IntArray) Scan(value interface{}) error {
	return scanJSON(value, a)
}

// BoolArray 用于 JSON 布尔数组字段
type BoolArray []bool

func (a BoolArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (a *BoolArray) Scan(value interface{}) error {
	return scanJSON(value, a)
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}

type Quiz struct {
	ID                int64      `gorm:"primaryKey" json:"id"`
	UserID            int64      `gorm:"not null;index:idx_quizzes_user_created,priority:1" json:"user_id"`
	Title             string     `gorm:"size:200;not null" json:"title"`
	SubjectsAndTopics string     `gorm:"type:text;not null" json:"subjects_and_topics"`
	Difficulty        string     `gorm:"size:20;not null" json:"difficulty"`
	QuestionCount     int        `gorm:"not null" json:"question_count"`
	DocumentID        *int64     `gorm:"index" json:"document_id,omitempty"`
	HasFiles          bool       `gorm:"not null;default:false" json:"has_files"`
	Questions         Questions  `gorm:"type:json" json:"questions"`
	IsPublic          bool       `gorm:"default:false;index" json:"is_public"`
	ShareToken        *string    `gorm:"size:64;uniqueIndex" json:"share_token,omitempty"`
	SharedAt          *time.Time `json:"shared_at,omitempty"`
	CreatedAt         time.Time  `gorm:"index:idx_quizzes_user_created,priority:2" json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	// 软删除，删除后的测验仍计入当月配额
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuizResult 一次答题记录
type QuizResult struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	QuizID    int64     `gorm:"not null;index" json:"quiz_id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	Answers   IntArray  `gorm:"type:json" json:"answers"`
	Correct   BoolArray `gorm:"type:json" json:"correct"`
	Score     int       `gorm:"not null" json:"score"`
	Total     int       `gorm:"not null" json:"total"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (QuizResult) TableName() string {
	return "quiz_results"
}
