package models

import "time"

// StoreRecord is a store (plant) master row. plant is unique per collection.
type StoreRecord struct {
	ID          string     `mapstructure:"id"`
	Plant       string     `mapstructure:"plant" validate:"required"`
	Name        string     `mapstructure:"name" validate:"required"`
	City        *string    `mapstructure:"city"`
	State       *string    `mapstructure:"state"`
	Region      *string    `mapstructure:"region"`
	AreaSqFt    *float64   `mapstructure:"areaSqFt" validate:"omitempty,gte=0"`
	Active      *bool      `mapstructure:"active"`
	OpeningDate *time.Time `mapstructure:"openingDate"`
}

func (r *StoreRecord) RecordID() string { return r.ID }

func (r *StoreRecord) Document(op Operation, _ time.Time) map[string]interface{} {
	doc := make(map[string]interface{})
	putString(doc, "plant", r.Plant, op)
	putString(doc, "name", r.Name, op)
	putOptionalString(doc, "city", r.City, "", op)
	putOptionalString(doc, "state", r.State, "", op)
	putOptionalString(doc, "region", r.Region, "", op)
	putFloat(doc, "areaSqFt", r.AreaSqFt, 0, op)
	putBool(doc, "active", r.Active, true, op)
	if r.OpeningDate != nil {
		doc["openingDate"] = r.OpeningDate.UTC()
	}
	return doc
}
