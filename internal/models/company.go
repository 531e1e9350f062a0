package models

import "time"

type Company struct {
	ID          int64     `json:"id"`
	CompanyName string    `json:"companyname"`
	CompanyLogo string    `json:"companylogo"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}
