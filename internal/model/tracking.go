package model

import "time"

// Condition はユーザーが記録する体調・症状レコードを表す。
// 作成と削除のみで、作成後のフィールド更新は行わない。
type Condition struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Medication はユーザーが記録する服薬レコードを表す。
// activeフラグのトグルと削除以外の変更は行わない。デフォルトはactive=true。
type Medication struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
