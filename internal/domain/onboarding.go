package domain

import "time"

// ScheduleCheck is the live result of the most recent schedule poll.
type ScheduleCheck struct {
	HasSchedule  bool       `json:"has_schedule"`
	ScheduleTime *time.Time `json:"schedule_time"`
}

// Status values returned by confirm endpoints.
const (
	StatusOK      = "ok"
	StatusPending = "pending"
)

// StatusMessage is the generic {status, message} acknowledgement of the remote API.
type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
