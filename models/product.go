package models

import "time"

// ProductRecord is a product master row. materialCode is unique per collection.
type ProductRecord struct {
	ID           string   `mapstructure:"id"`
	MaterialCode string   `mapstructure:"materialCode" validate:"required"`
	Description  string   `mapstructure:"description" validate:"required"`
	MRP          *float64 `mapstructure:"mrp" validate:"required,gte=0"`
	Category     *string  `mapstructure:"category"`
	Brand        *string  `mapstructure:"brand"`
	Unit         *string  `mapstructure:"unit" validate:"omitempty,min=1,max=16"`
	HSNCode      *string  `mapstructure:"hsnCode" validate:"omitempty,numeric"`
	GSTRate      *float64 `mapstructure:"gstRate" validate:"omitempty,gte=0,lte=100"`
	Active       *bool    `mapstructure:"active"`
}

func (r *ProductRecord) RecordID() string { return r.ID }

func (r *ProductRecord) Document(op Operation, _ time.Time) map[string]interface{} {
	doc := make(map[string]interface{})
	putString(doc, "materialCode", r.MaterialCode, op)
	putString(doc, "description", r.Description, op)
	putFloat(doc, "mrp", r.MRP, 0, op)
	putOptionalString(doc, "category", r.Category, "", op)
	putOptionalString(doc, "brand", r.Brand, "", op)
	putOptionalString(doc, "unit", r.Unit, "EA", op)
	if r.HSNCode != nil {
		doc["hsnCode"] = *r.HSNCode
	}
	putFloat(doc, "gstRate", r.GSTRate, 0, op)
	putBool(doc, "active", r.Active, true, op)
	return doc
}
