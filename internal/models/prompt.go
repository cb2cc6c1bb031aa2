package models

import (
	"time"
)

type Prompt struct {
	ID        int64
	UserID    int64
	Title     string
	Prompt    string
	CreatedAt time.Time
}
