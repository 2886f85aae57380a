package planner

import "time"

// Task status and priority values.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in-progress"
	TaskDone       = "done"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Payment status values for budget items.
const (
	PaymentPending   = "pending"
	PaymentDeposit   = "deposit-paid"
	PaymentFullyPaid = "fully-paid"
)

// RSVP status values for guests.
const (
	RSVPInvited  = "invited"
	RSVPSent     = "sent"
	RSVPAccepted = "accepted"
	RSVPDeclined = "declined"
	RSVPPending  = "pending"
)

// Table shapes for the seating chart.
const (
	ShapeRound       = "round"
	ShapeRectangular = "rectangular"
	ShapeSquare      = "square"
)

type Wedding struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Partner1Name  string    `json:"partner1_name"`
	Partner2Name  string    `json:"partner2_name"`
	WeddingDate   string    `json:"wedding_date"`
	Venue         string    `json:"venue"`
	Location      string    `json:"location"`
	Theme         string    `json:"theme"`
	TotalBudget   float64   `json:"total_budget"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Task struct {
	ID          string    `json:"id"`
	WeddingID   string    `json:"wedding_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	DueDate     string    `json:"due_date,omitempty"`
	AssignedTo  string    `json:"assigned_to,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type BudgetCategory struct {
	ID              string  `json:"id"`
	WeddingID       string  `json:"wedding_id"`
	Name            string  `json:"name"`
	AllocatedAmount float64 `json:"allocated_amount"`
	Icon            string  `json:"icon"`
}

type BudgetItem struct {
	ID            string  `json:"id"`
	CategoryID    string  `json:"category_id"`
	WeddingID     string  `json:"wedding_id"`
	Name          string  `json:"name"`
	EstimatedCost float64 `json:"estimated_cost"`
	ActualCost    float64 `json:"actual_cost"`
	PaymentStatus string  `json:"payment_status"`
	VendorID      string  `json:"vendor_id,omitempty"`
	Notes         string  `json:"notes"`
}

type Guest struct {
	ID                  string    `json:"id"`
	WeddingID           string    `json:"wedding_id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Phone               string    `json:"phone"`
	Group               string    `json:"group"`
	MealPreference      string    `json:"meal_preference"`
	DietaryRestrictions string    `json:"dietary_restrictions"`
	PlusOne             bool      `json:"plus_one"`
	PlusOneName         string    `json:"plus_one_name"`
	RSVPStatus          string    `json:"rsvp_status"`
	TableID             string    `json:"table_id,omitempty"`
	SeatNumber          int       `json:"seat_number,omitempty"`
	Notes               string    `json:"notes"`
	CreatedAt           time.Time `json:"created_at"`
}

type Vendor struct {
	ID          string    `json:"id"`
	WeddingID   string    `json:"wedding_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Website     string    `json:"website"`
	ContractURL string    `json:"contract_url,omitempty"`
	TotalCost   float64   `json:"total_cost"`
	DepositPaid float64   `json:"deposit_paid"`
	Rating      float64   `json:"rating"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

type SeatingTable struct {
	ID        string  `json:"id"`
	WeddingID string  `json:"wedding_id"`
	Name      string  `json:"name"`
	Shape     string  `json:"shape"`
	Capacity  int     `json:"capacity"`
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
}

type TimelineEvent struct {
	ID                string `json:"id"`
	WeddingID         string `json:"wedding_id"`
	Title             string `json:"title"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Location          string `json:"location"`
	ResponsiblePerson string `json:"responsible_person"`
	Notes             string `json:"notes"`
	SortOrder         int    `json:"sort_order"`
}

type MoodBoardItem struct {
	ID        string    `json:"id"`
	WeddingID string    `json:"wedding_id"`
	ImageURL  string    `json:"image_url"`
	Category  string    `json:"category"`
	Caption   string    `json:"caption"`
	CreatedAt time.Time `json:"created_at"`
}

type Note struct {
	ID        string    `json:"id"`
	WeddingID string    `json:"wedding_id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	VendorID  string    `json:"vendor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is one entry in the shared activity feed, written alongside
// notable mutations.
type Activity struct {
	ID         string    `json:"id"`
	WeddingID  string    `json:"wedding_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityName string    `json:"entity_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats summarizes a wedding for the dashboard.
type Stats struct {
	DaysUntilWedding int
	TotalBudget      float64
	BudgetSpent      float64
	BudgetRemaining  float64
	TasksTotal       int
	TasksDone        int
	GuestsInvited    int
	GuestsAccepted   int
	GuestsDeclined   int
	GuestsPending    int
	VendorsBooked    int
}
