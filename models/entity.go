package models

import "time"

// Entity identifies a bulk-ingestible record type
type Entity string

const (
	EntitySales    Entity = "sales"
	EntityProducts Entity = "products"
	EntityStores   Entity = "stores"
)

// Entities lists all entities served by the bulk endpoints
var Entities = []Entity{EntitySales, EntityProducts, EntityStores}

// ParseEntity maps a route segment to an Entity
func ParseEntity(s string) (Entity, bool) {
	for _, e := range Entities {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

// Collection returns the document store collection backing the entity
func (e Entity) Collection() string {
	switch e {
	case EntitySales:
		return "sales_transactions"
	case EntityProducts:
		return "products"
	case EntityStores:
		return "stores"
	default:
		return string(e)
	}
}

// RecordSchema is implemented by every entity input type. Document renders the
// normalized field set for the store; defaults are applied only on create and
// absent fields are left out on update.
type RecordSchema interface {
	RecordID() string
	Document(op Operation, now time.Time) map[string]interface{}
}

func putString(doc map[string]interface{}, key, value string, op Operation) {
	if value == "" && op == OperationUpdate {
		return
	}
	doc[key] = value
}

func putOptionalString(doc map[string]interface{}, key string, value *string, def string, op Operation) {
	switch {
	case value != nil:
		doc[key] = *value
	case op == OperationCreate:
		doc[key] = def
	}
}

func putFloat(doc map[string]interface{}, key string, value *float64, def float64, op Operation) {
	switch {
	case value != nil:
		doc[key] = *value
	case op == OperationCreate:
		doc[key] = def
	}
}

func putBool(doc map[string]interface{}, key string, value *bool, def bool, op Operation) {
	switch {
	case value != nil:
		doc[key] = *value
	case op == OperationCreate:
		doc[key] = def
	}
}
