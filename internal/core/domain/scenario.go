package domain

// PlaceholderScenario is the disabled "nothing selected" entry.
const PlaceholderScenario = "default"

// Scenario is one selectable agent preset.
type Scenario struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Catalog is the fixed list of scenarios offered to the user.
type Catalog []Scenario

// DefaultCatalog is used when configuration does not supply one.
var DefaultCatalog = Catalog{
	{ID: "casual", Label: "Casual Conversation"},
	{ID: "professional", Label: "Professional Meeting"},
	{ID: "interview", Label: "Interview Mode"},
	{ID: "creative", Label: "Creative Discussion"},
}

// Contains reports whether id is a selectable scenario. The placeholder
// is accepted too since it is what an untouched selection sends.
func (c Catalog) Contains(id string) bool {
	if id == PlaceholderScenario {
		return true
	}
	for _, s := range c {
		if s.ID == id {
			return true
		}
	}
	return false
}
