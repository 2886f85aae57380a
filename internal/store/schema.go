package store

// Collection names. One document table per domain entity plus the outbound
// sync queue (which has its own typed table, see queue.go).
const (
	Weddings         = "weddings"
	Tasks            = "tasks"
	BudgetCategories = "budget_categories"
	BudgetItems      = "budget_items"
	Guests           = "guests"
	Vendors          = "vendors"
	SeatingTables    = "seating_tables"
	TimelineEvents   = "timeline_events"
	MoodBoardItems   = "mood_board_items"
	Notes            = "notes"
	Messages         = "messages"
	Activities       = "activities"
)

// collections maps each collection to its secondary indexes (JSON fields
// materialized as generated columns by the migrations). The SQL schema is
// the source of truth; this registry mirrors it so Collection() can refuse
// unknown names and Query() unknown indexes before touching SQL.
var collections = map[string][]string{
	Weddings:         {"user_id", "created_at"},
	Tasks:            {"wedding_id", "status", "category", "due_date", "priority"},
	BudgetCategories: {"wedding_id"},
	BudgetItems:      {"category_id", "wedding_id", "payment_status"},
	Guests:           {"wedding_id", "group", "rsvp_status", "table_id"},
	Vendors:          {"wedding_id", "category"},
	SeatingTables:    {"wedding_id"},
	TimelineEvents:   {"wedding_id", "sort_order"},
	MoodBoardItems:   {"wedding_id", "category"},
	Notes:            {"wedding_id", "author_id", "vendor_id"},
	Messages:         {"wedding_id", "author_id", "created_at"},
	Activities:       {"wedding_id", "user_id", "created_at"},
}

// Names returns every declared collection name.
func Names() []string {
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	return names
}

func hasIndex(name, index string) bool {
	for _, ix := range collections[name] {
		if ix == index {
			return true
		}
	}
	return false
}
