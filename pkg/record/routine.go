package record

// RoutineItem is one habit in the checklist.
type RoutineItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

var defaultRoutines = []RoutineItem{
	{ID: "water", Label: "물 한 잔 마시기", Icon: "water"},
	{ID: "ventilation", Label: "창문 열고 환기하기", Icon: "wind"},
	{ID: "stretch", Label: "가벼운 스트레칭", Icon: "stretch"},
	{ID: "read", Label: "책 10분 읽기", Icon: "read"},
	{ID: "coffee", Label: "여유롭게 커피/차 마시기", Icon: "coffee"},
}

// Catalog is an immutable, ordered set of routines.
type Catalog struct {
	items []RoutineItem
	index map[string]int
}

// NewCatalog builds a catalog. Later duplicates of an ID are ignored.
func NewCatalog(items ...RoutineItem) Catalog {
	c := Catalog{index: make(map[string]int, len(items))}
	for _, it := range items {
		if _, dup := c.index[it.ID]; dup {
			continue
		}
		c.index[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c
}

// DefaultRoutines returns the built-in morning routine catalog.
func DefaultRoutines() Catalog {
	return NewCatalog(defaultRoutines...)
}

// Items returns a copy of the routines in display order.
func (c Catalog) Items() []RoutineItem {
	return append([]RoutineItem(nil), c.items...)
}

// Lookup returns the routine with the given ID.
func (c Catalog) Lookup(id string) (RoutineItem, bool) {
	i, ok := c.index[id]
	if !ok {
		return RoutineItem{}, false
	}
	return c.items[i], true
}

// Len is the number of routines.
func (c Catalog) Len() int { return len(c.items) }

// Icon renders an icon tag as a terminal glyph.
func Icon(tag string) string {
	switch tag {
	case "water":
		return "💧"
	case "wind":
		return "🌬"
	case "stretch":
		return "🤸"
	case "read":
		return "📖"
	case "coffee":
		return "☕"
	default:
		return "•"
	}
}
