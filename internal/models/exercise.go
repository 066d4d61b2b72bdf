package models

import "time"

// Exercise exists independently of the users whose logs reference it.
type Exercise struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Date        time.Time `json:"date"`
}

// AddExerciseRequest is the body for POST /api/users/{id}/exercises.
type AddExerciseRequest struct {
	Description string   `json:"description" validate:"required"`
	Duration    *float64 `json:"duration"    validate:"required,finite,gte=0"`
	Date        string   `json:"date"        validate:"omitempty,calendar_date"`
}

// ExerciseResponse is returned after an exercise is logged. ID is the user's.
type ExerciseResponse struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Date        string  `json:"date"`
}

// LogEntry is one resolved exercise in a user's log.
type LogEntry struct {
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Date        string  `json:"date"`
}

// LogResponse is a user's resolved exercise history.
type LogResponse struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Count    int        `json:"count"`
	Log      []LogEntry `json:"log"`
}
