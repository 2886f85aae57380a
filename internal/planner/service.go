package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/store"
)

// Enqueuer hands planner mutations to the durable outbound queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, table, op string, data any)
}

// Service implements local-first CRUD over the planner collections. Every
// mutation writes the local store first (failures propagate to the caller)
// and then enqueues the outbound replica of the change (failures there are
// the queue's problem, never the caller's).
type Service struct {
	db     *store.DB
	queue  Enqueuer
	logger *zap.Logger

	actorID   string
	actorName string
}

func NewService(db *store.DB, queue Enqueuer, logger *zap.Logger) *Service {
	return &Service{db: db, queue: queue, logger: logger.Named("planner")}
}

// SetActor names the local user for activity-feed attribution. Call once
// after sign-in, before mutations.
func (s *Service) SetActor(id, name string) {
	s.actorID = id
	s.actorName = name
}

func (s *Service) create(ctx context.Context, table, id string, record any) error {
	if err := s.db.MustCollection(table).Put(ctx, id, record); err != nil {
		return fmt.Errorf("put %s: %w", table, err)
	}
	s.queue.Enqueue(ctx, table, store.OpInsert, record)
	return nil
}

func (s *Service) update(ctx context.Context, table, id string, record any) error {
	if err := s.db.MustCollection(table).Put(ctx, id, record); err != nil {
		return fmt.Errorf("put %s: %w", table, err)
	}
	s.queue.Enqueue(ctx, table, store.OpUpdate, record)
	return nil
}

func (s *Service) remove(ctx context.Context, table, id string) error {
	if err := s.db.MustCollection(table).Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	s.queue.Enqueue(ctx, table, store.OpDelete, map[string]any{"id": id})
	return nil
}

// recordActivity appends to the shared feed. Best effort: a feed write
// failure never fails the mutation it describes.
func (s *Service) recordActivity(ctx context.Context, weddingID, action, entityType, entityName string) {
	if s.actorID == "" {
		return
	}
	a := Activity{
		ID:         uuid.NewString(),
		WeddingID:  weddingID,
		UserID:     s.actorID,
		UserName:   s.actorName,
		Action:     action,
		EntityType: entityType,
		EntityName: entityName,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.MustCollection(store.Activities).Put(ctx, a.ID, a); err != nil {
		s.logger.Warn("activity record failed", zap.String("action", action), zap.Error(err))
		return
	}
	s.queue.Enqueue(ctx, store.Activities, store.OpInsert, a)
}

// ---- Weddings ----

func (s *Service) AddWedding(ctx context.Context, w Wedding) (Wedding, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	return w, s.create(ctx, store.Weddings, w.ID, w)
}

func (s *Service) UpdateWedding(ctx context.Context, w Wedding) error {
	return s.update(ctx, store.Weddings, w.ID, w)
}

func (s *Service) GetWedding(ctx context.Context, id string) (*Wedding, error) {
	return store.Get[Wedding](ctx, s.db.MustCollection(store.Weddings), id)
}

func (s *Service) ListWeddings(ctx context.Context, userID string) ([]Wedding, error) {
	return store.Query[Wedding](ctx, s.db.MustCollection(store.Weddings), "user_id", userID)
}

// ---- Tasks ----

func (s *Service) AddTask(ctx context.Context, t Task) (Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return Task{}, fmt.Errorf("task title is required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TaskTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if err := s.create(ctx, store.Tasks, t.ID, t); err != nil {
		return Task{}, err
	}
	s.recordActivity(ctx, t.WeddingID, "added a task", "task", t.Title)
	return t, nil
}

func (s *Service) UpdateTask(ctx context.Context, t Task) error {
	if err := s.update(ctx, store.Tasks, t.ID, t); err != nil {
		return err
	}
	if t.Status == TaskDone {
		s.recordActivity(ctx, t.WeddingID, "completed a task", "task", t.Title)
	}
	return nil
}

func (s *Service) DeleteTask(ctx context.Context, id string) error {
	return s.remove(ctx, store.Tasks, id)
}

func (s *Service) ListTasks(ctx context.Context, weddingID string) ([]Task, error) {
	return store.Query[Task](ctx, s.db.MustCollection(store.Tasks), "wedding_id", weddingID)
}

// ---- Budget ----

func (s *Service) AddBudgetCategory(ctx context.Context, c BudgetCategory) (BudgetCategory, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.create(ctx, store.BudgetCategories, c.ID, c); err != nil {
		return BudgetCategory{}, err
	}
	s.recordActivity(ctx, c.WeddingID, "added a budget category", "budget", c.Name)
	return c, nil
}

func (s *Service) UpdateBudgetCategory(ctx context.Context, c BudgetCategory) error {
	return s.update(ctx, store.BudgetCategories, c.ID, c)
}

// DeleteBudgetCategory removes a category and every item filed under it.
// Each row is its own delete plus queue entry; a failure partway leaves the
// earlier deletes done and the later rows untouched, with no rollback.
func (s *Service) DeleteBudgetCategory(ctx context.Context, id string) error {
	items, err := store.Query[BudgetItem](ctx, s.db.MustCollection(store.BudgetItems), "category_id", id)
	if err != nil {
		return fmt.Errorf("list category items: %w", err)
	}
	for _, item := range items {
		if err := s.remove(ctx, store.BudgetItems, item.ID); err != nil {
			return fmt.Errorf("cascade item %s: %w", item.ID, err)
		}
	}
	return s.remove(ctx, store.BudgetCategories, id)
}

func (s *Service) ListBudgetCategories(ctx context.Context, weddingID string) ([]BudgetCategory, error) {
	return store.Query[BudgetCategory](ctx, s.db.MustCollection(store.BudgetCategories), "wedding_id", weddingID)
}

func (s *Service) AddBudgetItem(ctx context.Context, i BudgetItem) (BudgetItem, error) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.PaymentStatus == "" {
		i.PaymentStatus = PaymentPending
	}
	if err := s.create(ctx, store.BudgetItems, i.ID, i); err != nil {
		return BudgetItem{}, err
	}
	s.recordActivity(ctx, i.WeddingID, "added a budget item", "budget", i.Name)
	return i, nil
}

func (s *Service) UpdateBudgetItem(ctx context.Context, i BudgetItem) error {
	return s.update(ctx, store.BudgetItems, i.ID, i)
}

func (s *Service) DeleteBudgetItem(ctx context.Context, id string) error {
	return s.remove(ctx, store.BudgetItems, id)
}

func (s *Service) ListBudgetItems(ctx context.Context, weddingID string) ([]BudgetItem, error) {
	return store.Query[BudgetItem](ctx, s.db.MustCollection(store.BudgetItems), "wedding_id", weddingID)
}

func (s *Service) ListBudgetItemsByCategory(ctx context.Context, categoryID string) ([]BudgetItem, error) {
	return store.Query[BudgetItem](ctx, s.db.MustCollection(store.BudgetItems), "category_id", categoryID)
}

// ---- Guests ----

func (s *Service) AddGuest(ctx context.Context, g Guest) (Guest, error) {
	if strings.TrimSpace(g.Name) == "" {
		return Guest{}, fmt.Errorf("guest name is required")
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.RSVPStatus == "" {
		g.RSVPStatus = RSVPPending
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if err := s.create(ctx, store.Guests, g.ID, g); err != nil {
		return Guest{}, err
	}
	s.recordActivity(ctx, g.WeddingID, "added a guest", "guest", g.Name)
	return g, nil
}

func (s *Service) UpdateGuest(ctx context.Context, g Guest) error {
	return s.update(ctx, store.Guests, g.ID, g)
}

func (s *Service) DeleteGuest(ctx context.Context, id string) error {
	return s.remove(ctx, store.Guests, id)
}

func (s *Service) ListGuests(ctx context.Context, weddingID string) ([]Guest, error) {
	return store.Query[Guest](ctx, s.db.MustCollection(store.Guests), "wedding_id", weddingID)
}

// AssignGuestSeat moves a guest to a table and seat; empty tableID
// unassigns.
func (s *Service) AssignGuestSeat(ctx context.Context, guestID, tableID string, seat int) error {
	g, err := store.Get[Guest](ctx, s.db.MustCollection(store.Guests), guestID)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("guest %s not found", guestID)
	}
	g.TableID = tableID
	g.SeatNumber = seat
	if tableID == "" {
		g.SeatNumber = 0
	}
	return s.update(ctx, store.Guests, g.ID, g)
}

// ---- Vendors ----

func (s *Service) AddVendor(ctx context.Context, v Vendor) (Vendor, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if err := s.create(ctx, store.Vendors, v.ID, v); err != nil {
		return Vendor{}, err
	}
	s.recordActivity(ctx, v.WeddingID, "added a vendor", "vendor", v.Name)
	return v, nil
}

func (s *Service) UpdateVendor(ctx context.Context, v Vendor) error {
	return s.update(ctx, store.Vendors, v.ID, v)
}

func (s *Service) DeleteVendor(ctx context.Context, id string) error {
	return s.remove(ctx, store.Vendors, id)
}

func (s *Service) ListVendors(ctx context.Context, weddingID string) ([]Vendor, error) {
	return store.Query[Vendor](ctx, s.db.MustCollection(store.Vendors), "wedding_id", weddingID)
}

// ---- Seating ----

func (s *Service) AddSeatingTable(ctx context.Context, t SeatingTable) (SeatingTable, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Shape == "" {
		t.Shape = ShapeRound
	}
	return t, s.create(ctx, store.SeatingTables, t.ID, t)
}

func (s *Service) UpdateSeatingTable(ctx context.Context, t SeatingTable) error {
	return s.update(ctx, store.SeatingTables, t.ID, t)
}

// DeleteSeatingTable drops a table and unassigns every guest seated there.
func (s *Service) DeleteSeatingTable(ctx context.Context, id string) error {
	seated, err := store.Query[Guest](ctx, s.db.MustCollection(store.Guests), "table_id", id)
	if err != nil {
		return fmt.Errorf("list seated guests: %w", err)
	}
	for _, g := range seated {
		g.TableID = ""
		g.SeatNumber = 0
		if err := s.update(ctx, store.Guests, g.ID, g); err != nil {
			return fmt.Errorf("unassign guest %s: %w", g.ID, err)
		}
	}
	return s.remove(ctx, store.SeatingTables, id)
}

func (s *Service) ListSeatingTables(ctx context.Context, weddingID string) ([]SeatingTable, error) {
	return store.Query[SeatingTable](ctx, s.db.MustCollection(store.SeatingTables), "wedding_id", weddingID)
}

// ---- Timeline ----

func (s *Service) AddTimelineEvent(ctx context.Context, e TimelineEvent) (TimelineEvent, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return e, s.create(ctx, store.TimelineEvents, e.ID, e)
}

func (s *Service) UpdateTimelineEvent(ctx context.Context, e TimelineEvent) error {
	return s.update(ctx, store.TimelineEvents, e.ID, e)
}

func (s *Service) DeleteTimelineEvent(ctx context.Context, id string) error {
	return s.remove(ctx, store.TimelineEvents, id)
}

func (s *Service) ListTimelineEvents(ctx context.Context, weddingID string) ([]TimelineEvent, error) {
	return store.Query[TimelineEvent](ctx, s.db.MustCollection(store.TimelineEvents), "wedding_id", weddingID)
}

// ---- Mood board ----

func (s *Service) AddMoodBoardItem(ctx context.Context, m MoodBoardItem) (MoodBoardItem, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := s.create(ctx, store.MoodBoardItems, m.ID, m); err != nil {
		return MoodBoardItem{}, err
	}
	s.recordActivity(ctx, m.WeddingID, "pinned an inspiration photo", "photo", m.Caption)
	return m, nil
}

func (s *Service) DeleteMoodBoardItem(ctx context.Context, id string) error {
	return s.remove(ctx, store.MoodBoardItems, id)
}

func (s *Service) ListMoodBoardItems(ctx context.Context, weddingID string) ([]MoodBoardItem, error) {
	return store.Query[MoodBoardItem](ctx, s.db.MustCollection(store.MoodBoardItems), "wedding_id", weddingID)
}

// ---- Notes ----

func (s *Service) AddNote(ctx context.Context, n Note) (Note, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return n, s.create(ctx, store.Notes, n.ID, n)
}

func (s *Service) UpdateNote(ctx context.Context, n Note) error {
	return s.update(ctx, store.Notes, n.ID, n)
}

func (s *Service) DeleteNote(ctx context.Context, id string) error {
	return s.remove(ctx, store.Notes, id)
}

func (s *Service) ListNotes(ctx context.Context, weddingID string) ([]Note, error) {
	return store.Query[Note](ctx, s.db.MustCollection(store.Notes), "wedding_id", weddingID)
}

// ---- Activity feed ----

func (s *Service) ListActivities(ctx context.Context, weddingID string) ([]Activity, error) {
	return store.Query[Activity](ctx, s.db.MustCollection(store.Activities), "wedding_id", weddingID)
}

// ---- Dashboard ----

// DashboardStats aggregates the wedding's headline numbers from the local
// collections. now lets callers pin the day count for display.
func (s *Service) DashboardStats(ctx context.Context, weddingID string, now time.Time) (Stats, error) {
	var stats Stats

	w, err := s.GetWedding(ctx, weddingID)
	if err != nil {
		return stats, err
	}
	if w != nil {
		stats.TotalBudget = w.TotalBudget
		if d, err := time.Parse("2006-01-02", w.WeddingDate); err == nil {
			stats.DaysUntilWedding = int(d.Sub(now).Hours() / 24)
		}
	}

	tasks, err := s.ListTasks(ctx, weddingID)
	if err != nil {
		return stats, err
	}
	stats.TasksTotal = len(tasks)
	for _, t := range tasks {
		if t.Status == TaskDone {
			stats.TasksDone++
		}
	}

	items, err := s.ListBudgetItems(ctx, weddingID)
	if err != nil {
		return stats, err
	}
	for _, i := range items {
		stats.BudgetSpent += i.ActualCost
	}
	stats.BudgetRemaining = stats.TotalBudget - stats.BudgetSpent

	guests, err := s.ListGuests(ctx, weddingID)
	if err != nil {
		return stats, err
	}
	for _, g := range guests {
		switch g.RSVPStatus {
		case RSVPAccepted:
			stats.GuestsAccepted++
		case RSVPDeclined:
			stats.GuestsDeclined++
		default:
			stats.GuestsPending++
		}
	}
	stats.GuestsInvited = len(guests)

	vendors, err := s.ListVendors(ctx, weddingID)
	if err != nil {
		return stats, err
	}
	stats.VendorsBooked = len(vendors)

	return stats, nil
}
