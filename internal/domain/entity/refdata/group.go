package refdata

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RootGroupID identifies the protected root of the instrument group tree.
var RootGroupID = uuid.MustParse("00000000-0000-0000-0000-000000000002")

const RootGroupName = "Root"

type InstrumentGroup struct {
	ID             uuid.UUID  `json:"id"`
	Attributes     Attributes `json:"attributes"`
	Tag            Tag        `json:"tag"`
	ParentID       uuid.UUID  `json:"parent_id"`
	Name           string     `json:"name"`
	AlternateNames []string   `json:"alternate_names"`
	Description    string     `json:"description"`
	UserID         string     `json:"user_id,omitempty"`

	ChildIDs          []uuid.UUID `json:"child_ids"`
	InstrumentTickers []string    `json:"instrument_tickers"`
}

func NewInstrumentGroup(parentID uuid.UUID, name string) (*InstrumentGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("group name is required")
	}
	if parentID == uuid.Nil {
		parentID = RootGroupID
	}
	return &InstrumentGroup{
		ID:         uuid.New(),
		Attributes: AttrDefault,
		ParentID:   parentID,
		Name:       name,
	}, nil
}

func NewRootGroup() *InstrumentGroup {
	return &InstrumentGroup{
		ID:         RootGroupID,
		Attributes: AttrNone,
		Name:       RootGroupName,
	}
}

func (g *InstrumentGroup) IsRoot() bool {
	return g.ID == RootGroupID
}

func (g *InstrumentGroup) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if strings.EqualFold(g.Name, name) {
		return true
	}
	for _, alt := range g.AlternateNames {
		if strings.EqualFold(alt, name) {
			return true
		}
	}
	return false
}

func (g *InstrumentGroup) AddChild(id uuid.UUID)          { g.ChildIDs = addID(g.ChildIDs, id) }
func (g *InstrumentGroup) RemoveChild(id uuid.UUID)       { g.ChildIDs = removeID(g.ChildIDs, id) }
func (g *InstrumentGroup) AddInstrument(ticker string)    { g.InstrumentTickers = addString(g.InstrumentTickers, ticker) }
func (g *InstrumentGroup) RemoveInstrument(ticker string) { g.InstrumentTickers = removeString(g.InstrumentTickers, ticker) }

func (g *InstrumentGroup) ResetLinks() {
	g.ChildIDs = nil
	g.InstrumentTickers = nil
}

// GroupMembership links an instrument ticker to a group.
type GroupMembership struct {
	GroupID uuid.UUID
	Ticker  string
}
