package models

import "time"

// DataType is the closed set of column data types
type DataType string

const (
	TypeInteger   DataType = "integer"
	TypeFloat     DataType = "float"
	TypeCurrency  DataType = "currency"
	TypeString    DataType = "string"
	TypeBoolean   DataType = "boolean"
	TypeDate      DataType = "date"
	TypeDateTime  DataType = "datetime"
	TypeEnum      DataType = "enum"
	TypePicklist  DataType = "picklist"
	TypeReference DataType = "reference"
)

// AllDataTypes lists every valid data type tag
var AllDataTypes = []DataType{
	TypeInteger, TypeFloat, TypeCurrency, TypeString, TypeBoolean,
	TypeDate, TypeDateTime, TypeEnum, TypePicklist, TypeReference,
}

// Valid reports whether d belongs to the closed data type set
func (d DataType) Valid() bool {
	for _, t := range AllDataTypes {
		if d == t {
			return true
		}
	}
	return false
}

// IsEnumLike reports whether the type requires an enum binding
func (d DataType) IsEnumLike() bool {
	return d == TypeEnum || d == TypePicklist
}

// ReferenceKind is the closed variant over a reference column's binding:
// either a plain table or a many-to-many link table. Dispatched by the
// validator, the link resolver and the renderer.
type ReferenceKind int

const (
	RefNone ReferenceKind = iota
	RefDirect
	RefManyToMany
)

// Table is a user-defined entity type
type Table struct {
	ID                     int64     `json:"id"`
	Name                   string    `json:"name"`
	DisplayFormat          string    `json:"display_format,omitempty"`
	DisplayFormatSecondary string    `json:"display_format_secondary,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`

	// Columns is populated when the table is loaded with its schema
	Columns []Column `json:"columns,omitempty"`
}

// Column is one typed field of a Table
type Column struct {
	ID                   int64     `json:"id"`
	TableID              int64     `json:"table_id"`
	Name                 string    `json:"name"`
	DataType             DataType  `json:"data_type"`
	IsList               bool      `json:"is_list"`
	EnumID               *int64    `json:"enum_id,omitempty"`
	ReferenceTableID     *int64    `json:"reference_table_id,omitempty"`
	ReferenceLinkTableID *int64    `json:"reference_link_table_id,omitempty"`
	Required             bool      `json:"required"`
	Unique               bool      `json:"unique"`
	Searchable           bool      `json:"searchable"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// RefKind returns which reference variant the column is bound to.
// Only meaningful when DataType is TypeReference.
func (c *Column) RefKind() ReferenceKind {
	switch {
	case c.ReferenceTableID != nil:
		return RefDirect
	case c.ReferenceLinkTableID != nil:
		return RefManyToMany
	default:
		return RefNone
	}
}

// Enum is a named closed set of allowed string values
type Enum struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Values []EnumValue `json:"values,omitempty"`
}

// ValueSet returns the enum's values as a membership set
func (e *Enum) ValueSet() map[string]bool {
	set := make(map[string]bool, len(e.Values))
	for _, v := range e.Values {
		set[v.Value] = true
	}
	return set
}

// EnumValue is one allowed value of an Enum
type EnumValue struct {
	ID     int64  `json:"id"`
	EnumID int64  `json:"enum_id"`
	Value  string `json:"value"`
}

// LinkTable is a many-to-many relationship type between two tables
type LinkTable struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FromTableID int64     `json:"from_table_id"`
	ToTableID   int64     `json:"to_table_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Columns []LinkColumn `json:"columns,omitempty"`
}

// LinkColumn is one typed attribute carried by every edge of a LinkTable.
// Same shape as Column, minus list-ness and searchability.
type LinkColumn struct {
	ID          int64     `json:"id"`
	LinkTableID int64     `json:"link_table_id"`
	Name        string    `json:"name"`
	DataType    DataType  `json:"data_type"`
	EnumID      *int64    `json:"enum_id,omitempty"`
	Required    bool      `json:"required"`
	Unique      bool      `json:"unique"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
