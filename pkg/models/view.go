package models

// View selects which tasks a list renders. ViewStats is not a list filter;
// it tells the caller to render aggregates instead.
type View string

const (
	ViewAll          View = "all"
	ViewActive       View = "active"
	ViewCompleted    View = "completed"
	ViewOverdue      View = "overdue"
	ViewHighPriority View = "high-priority"
	ViewToday        View = "today"
	ViewStats        View = "stats"
)

// Views lists all selectable views in presentation order.
func Views() []View {
	return []View{ViewAll, ViewActive, ViewCompleted, ViewOverdue, ViewHighPriority, ViewToday, ViewStats}
}

func (v View) IsList() bool {
	return v != ViewStats
}

type SortKey string

const (
	SortDefault   SortKey = "default"
	SortCreated   SortKey = "created"
	SortUpdated   SortKey = "updated"
	SortPriority  SortKey = "priority"
	SortDue       SortKey = "due"
	SortCompleted SortKey = "completed"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)
