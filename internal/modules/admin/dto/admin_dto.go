package dto

import "time"

type StatsResponse struct {
	Users       int64     `json:"users"`
	Bookings    int64     `json:"bookings"`
	Revenue     int64     `json:"revenue"`
	Posts       int64     `json:"posts"`
	GeneratedAt time.Time `json:"generated_at"`
}

type UpdateRoleInput struct {
	Role string `json:"role" binding:"required,oneof=admin member"`
}
