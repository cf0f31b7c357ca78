// Package store defines the record types and the in-memory Record Store.
package store

// Record is a named service description. A record carries no identifier of
// its own; its id is the key it is stored under.
type Record struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

// NewRecordInput is the payload of a create request. Only its fields are
// copied into the stored Record.
type NewRecordInput struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

// Entry pairs a Record with the key it is stored under.
type Entry struct {
	ID int `json:"id"`
	Record
}

// DefaultSeed is the state every fresh store starts with: ids 0 and 1.
var DefaultSeed = []Record{
	{Name: "Traffic Routing", Desc: "Mongo... sorry."},
	{Name: "Main", Desc: "Here be dragons."},
}
