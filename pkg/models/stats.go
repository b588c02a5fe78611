package models

type Stats struct {
	Total      int              `json:"total"`
	Completed  int              `json:"completed"`
	Pending    int              `json:"pending"`
	Overdue    int              `json:"overdue"`
	DueToday   int              `json:"due_today"`
	ByPriority map[Priority]int `json:"by_priority"`
}
