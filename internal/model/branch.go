package model

import "time"

// Branch филиал школы; каталог филиалов ведётся снаружи, здесь только идентичность и активность
type Branch struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
