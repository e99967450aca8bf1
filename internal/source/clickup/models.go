package clickup

import "encoding/json"

type TeamsResponse struct {
	Teams []Team `json:"teams"`
}

type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

type Member struct {
	User APIUser `json:"user"`
}

type APIUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     *int   `json:"role"`
}

type TasksResponse struct {
	Tasks    []APITask `json:"tasks"`
	LastPage *bool     `json:"last_page"`
}

type APITask struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Parent       *string       `json:"parent"`
	Status       Status        `json:"status"`
	TimeSpent    json.Number   `json:"time_spent"`
	DateCreated  *string       `json:"date_created"`
	DateUpdated  *string       `json:"date_updated"`
	StartDate    *string       `json:"start_date"`
	DueDate      *string       `json:"due_date"`
	Archived     bool          `json:"archived"`
	Assignees    []APIUser     `json:"assignees"`
	CustomFields []CustomField `json:"custom_fields"`
}

type Status struct {
	Status string `json:"status"`
}

type CustomField struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Value      json.RawMessage `json:"value"`
	TypeConfig TypeConfig      `json:"type_config"`
}

type TypeConfig struct {
	Options []FieldOption `json:"options"`
}

type FieldOption struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	OrderIndex json.Number `json:"orderindex"`
}
