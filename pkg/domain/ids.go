// Package domain defines typed identifiers shared across bounded contexts.
//
// Entity identifiers are distinct named uuid types so a SectionID can never be
// passed where a DataPointID is expected. User identifiers come from an
// external directory and are opaque strings.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "esgledger/pkg/domain-errors"
)

type (
	OrganizationID uuid.UUID
	PeriodID       uuid.UUID
	SectionID      uuid.UUID
	DataPointID    uuid.UUID
	GapID          uuid.UUID
	AssumptionID   uuid.UUID
	PlanID         uuid.UUID
	ActionID       uuid.UUID
	EvidenceID     uuid.UUID
	CatalogItemID  uuid.UUID
	HistoryEntryID uuid.UUID
	RuleID         uuid.UUID
	OperationID    uuid.UUID
)

// UserID identifies a user in the external directory.
type UserID string

func (id UserID) String() string { return string(id) }

// IsNil reports whether the user id is blank.
func (id UserID) IsNil() bool { return strings.TrimSpace(string(id)) == "" }

// ParseUserID trims and validates an external user identifier.
func ParseUserID(s string) (UserID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id cannot be empty")
	}
	if len(s) > 128 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id must be 128 characters or less")
	}
	return UserID(s), nil
}

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

func ParsePeriodID(s string) (PeriodID, error) {
	u, err := parseUUID("period id", s)
	return PeriodID(u), err
}

func ParseSectionID(s string) (SectionID, error) {
	u, err := parseUUID("section id", s)
	return SectionID(u), err
}

func ParseDataPointID(s string) (DataPointID, error) {
	u, err := parseUUID("data point id", s)
	return DataPointID(u), err
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID("organization id", s)
	return OrganizationID(u), err
}

func ParseEvidenceID(s string) (EvidenceID, error) {
	u, err := parseUUID("evidence id", s)
	return EvidenceID(u), err
}

func (id OrganizationID) String() string { return uuid.UUID(id).String() }
func (id PeriodID) String() string       { return uuid.UUID(id).String() }
func (id SectionID) String() string      { return uuid.UUID(id).String() }
func (id DataPointID) String() string    { return uuid.UUID(id).String() }
func (id GapID) String() string          { return uuid.UUID(id).String() }
func (id AssumptionID) String() string   { return uuid.UUID(id).String() }
func (id PlanID) String() string         { return uuid.UUID(id).String() }
func (id ActionID) String() string       { return uuid.UUID(id).String() }
func (id EvidenceID) String() string     { return uuid.UUID(id).String() }
func (id CatalogItemID) String() string  { return uuid.UUID(id).String() }
func (id HistoryEntryID) String() string { return uuid.UUID(id).String() }
func (id RuleID) String() string         { return uuid.UUID(id).String() }
func (id OperationID) String() string    { return uuid.UUID(id).String() }

func (id PeriodID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SectionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DataPointID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func NewPeriodID() PeriodID             { return PeriodID(uuid.New()) }
func NewSectionID() SectionID           { return SectionID(uuid.New()) }
func NewDataPointID() DataPointID       { return DataPointID(uuid.New()) }
func NewGapID() GapID                   { return GapID(uuid.New()) }
func NewAssumptionID() AssumptionID     { return AssumptionID(uuid.New()) }
func NewPlanID() PlanID                 { return PlanID(uuid.New()) }
func NewActionID() ActionID             { return ActionID(uuid.New()) }
func NewEvidenceID() EvidenceID         { return EvidenceID(uuid.New()) }
func NewHistoryEntryID() HistoryEntryID { return HistoryEntryID(uuid.New()) }
func NewRuleID() RuleID                 { return RuleID(uuid.New()) }
func NewOperationID() OperationID       { return OperationID(uuid.New()) }

func marshalID(u uuid.UUID) ([]byte, error) { return []byte(u.String()), nil }

func unmarshalID(kind string, data []byte) (uuid.UUID, error) {
	u, err := uuid.ParseBytes(data)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}

func (id OrganizationID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id PeriodID) MarshalText() ([]byte, error)       { return marshalID(uuid.UUID(id)) }
func (id SectionID) MarshalText() ([]byte, error)      { return marshalID(uuid.UUID(id)) }
func (id DataPointID) MarshalText() ([]byte, error)    { return marshalID(uuid.UUID(id)) }
func (id GapID) MarshalText() ([]byte, error)          { return marshalID(uuid.UUID(id)) }
func (id AssumptionID) MarshalText() ([]byte, error)   { return marshalID(uuid.UUID(id)) }
func (id PlanID) MarshalText() ([]byte, error)         { return marshalID(uuid.UUID(id)) }
func (id ActionID) MarshalText() ([]byte, error)       { return marshalID(uuid.UUID(id)) }
func (id EvidenceID) MarshalText() ([]byte, error)     { return marshalID(uuid.UUID(id)) }
func (id CatalogItemID) MarshalText() ([]byte, error)  { return marshalID(uuid.UUID(id)) }
func (id HistoryEntryID) MarshalText() ([]byte, error) { return marshalID(uuid.UUID(id)) }
func (id RuleID) MarshalText() ([]byte, error)         { return marshalID(uuid.UUID(id)) }
func (id OperationID) MarshalText() ([]byte, error)    { return marshalID(uuid.UUID(id)) }

func (id *OrganizationID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("organization id", b)
	*id = OrganizationID(u)
	return err
}

func (id *PeriodID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("period id", b)
	*id = PeriodID(u)
	return err
}

func (id *SectionID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("section id", b)
	*id = SectionID(u)
	return err
}

func (id *DataPointID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("data point id", b)
	*id = DataPointID(u)
	return err
}

func (id *GapID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("gap id", b)
	*id = GapID(u)
	return err
}

func (id *AssumptionID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("assumption id", b)
	*id = AssumptionID(u)
	return err
}

func (id *PlanID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("plan id", b)
	*id = PlanID(u)
	return err
}

func (id *ActionID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("action id", b)
	*id = ActionID(u)
	return err
}

func (id *EvidenceID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("evidence id", b)
	*id = EvidenceID(u)
	return err
}

func (id *CatalogItemID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("catalog item id", b)
	*id = CatalogItemID(u)
	return err
}

func (id *HistoryEntryID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("history entry id", b)
	*id = HistoryEntryID(u)
	return err
}

func (id *RuleID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("rule id", b)
	*id = RuleID(u)
	return err
}

func (id *OperationID) UnmarshalText(b []byte) error {
	u, err := unmarshalID("operation id", b)
	*id = OperationID(u)
	return err
}
