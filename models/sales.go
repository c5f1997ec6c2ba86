package models

import "time"

// SalesRecord is one sales line as submitted for bulk import
type SalesRecord struct {
	ID            string     `mapstructure:"id"`
	Plant         string     `mapstructure:"plant" validate:"required"`
	MaterialCode  string     `mapstructure:"materialCode" validate:"required"`
	Quantity      *float64   `mapstructure:"quantity" validate:"required,gte=0"`
	MRP           *float64   `mapstructure:"mrp" validate:"required,gte=0"`
	Discount      *float64   `mapstructure:"discount" validate:"omitempty,gte=0"`
	GSV           *float64   `mapstructure:"gsv" validate:"required,gte=0"`
	NSV           *float64   `mapstructure:"nsv" validate:"required,gte=0"`
	TotalTax      *float64   `mapstructure:"totalTax" validate:"omitempty,gte=0"`
	Date          *time.Time `mapstructure:"date"`
	StoreName     *string    `mapstructure:"storeName"`
	Category      *string    `mapstructure:"category"`
	InvoiceNumber *string    `mapstructure:"invoiceNumber"`
}

func (r *SalesRecord) RecordID() string { return r.ID }

func (r *SalesRecord) Document(op Operation, now time.Time) map[string]interface{} {
	doc := make(map[string]interface{})
	putString(doc, "plant", r.Plant, op)
	putString(doc, "materialCode", r.MaterialCode, op)
	putFloat(doc, "quantity", r.Quantity, 0, op)
	putFloat(doc, "mrp", r.MRP, 0, op)
	putFloat(doc, "discount", r.Discount, 0, op)
	putFloat(doc, "gsv", r.GSV, 0, op)
	putFloat(doc, "nsv", r.NSV, 0, op)
	putFloat(doc, "totalTax", r.TotalTax, 0, op)
	switch {
	case r.Date != nil:
		doc["date"] = r.Date.UTC()
	case op == OperationCreate:
		doc["date"] = now.UTC()
	}
	if r.StoreName != nil {
		doc["storeName"] = *r.StoreName
	}
	if r.Category != nil {
		doc["category"] = *r.Category
	}
	if r.InvoiceNumber != nil {
		doc["invoiceNumber"] = *r.InvoiceNumber
	}
	return doc
}
