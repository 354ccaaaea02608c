package model

import "strings"

// Spreadsheet column headers. The member columns are misspelled upstream and
// must be matched exactly as written.
const (
	ColumnTeamName   = "Team Name"
	ColumnEmail      = "Email"
	ColumnTeamLeader = "Team Leader Name"
)

// MemberFields lists the member-name columns in processing order.
var MemberFields = []string{
	ColumnTeamLeader,
	"MEMEBER 1 NAME",
	"MEMEBER 2 NAME",
	"MEMEBER 3 NAME",
	"MEMEBER 4 NAME",
	"MEMEBER 5 NAME",
}

// Registration is one row of the roster sheet keyed by column header.
// Empty cells are not present in Fields.
type Registration struct {
	Row    int
	Fields map[string]string
}

// Value returns the trimmed value of a column, or "" when the cell is absent.
func (r Registration) Value(column string) string {
	return strings.TrimSpace(r.Fields[column])
}

func (r Registration) TeamName() string {
	return r.Value(ColumnTeamName)
}

func (r Registration) Email() string {
	return r.Value(ColumnEmail)
}

// Member returns the trimmed member name stored under field.
func (r Registration) Member(field string) string {
	return r.Value(field)
}
