// Package domain 定义了应用程序中使用的核心数据结构。
package domain

import "time"

// User 表示一个注册用户。
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"` // bcrypt 哈希，永不序列化
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserSummary 是对外暴露的用户信息，不包含密码。
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Summary 返回用户的公开视图。
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Identity 是经过 token 解析后可信的请求者身份。
type Identity struct {
	UserID   string
	Username string
	Email    string
}
