// Package validation decodes raw client records into the declared entity
// schemas, coerces their types and checks field-level rules before any
// store call is made.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/Developerodin/admin-crm-demo-backend-sub001/models"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// ErrUnknownEntity is returned for entities without a declared schema
var ErrUnknownEntity = errors.New("unknown entity")

// NormalizedRecord is a validated record ready for the store
type NormalizedRecord struct {
	ID        string
	Operation models.Operation
	Fields    map[string]interface{}
}

// FieldError describes one failed rule
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error collects every field failure of one record
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

func newError(field, format string, args ...interface{}) *Error {
	return &Error{Fields: []FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

// RecordValidator validates raw records against per-entity schemas
type RecordValidator struct {
	validate *validator.Validate
	schemas  map[models.Entity]func() models.RecordSchema
	now      func() time.Time
}

// NewRecordValidator returns a validator with the sales, product and store schemas registered
func NewRecordValidator() *RecordValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	return &RecordValidator{
		validate: v,
		schemas: map[models.Entity]func() models.RecordSchema{
			models.EntitySales:    func() models.RecordSchema { return &models.SalesRecord{} },
			models.EntityProducts: func() models.RecordSchema { return &models.ProductRecord{} },
			models.EntityStores:   func() models.RecordSchema { return &models.StoreRecord{} },
		},
		now: time.Now,
	}
}

// Supports reports whether a schema is declared for the entity
func (v *RecordValidator) Supports(entity models.Entity) bool {
	_, ok := v.schemas[entity]
	return ok
}

// RecordIdentifier returns the trimmed external id of a raw record, or "" when absent.
func RecordIdentifier(raw map[string]interface{}) string {
	if raw == nil {
		return ""
	}
	switch id := raw["id"].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", id))
	default:
		return strings.TrimSpace(fmt.Sprint(id))
	}
}

// OperationFor picks create or update from the presence of an id
func OperationFor(raw map[string]interface{}) models.Operation {
	if RecordIdentifier(raw) != "" {
		return models.OperationUpdate
	}
	return models.OperationCreate
}

// Validate decodes raw into the entity schema and checks it for op. Required
// fields are enforced on create only; type and range rules apply to both.
func (v *RecordValidator) Validate(entity models.Entity, raw map[string]interface{}, op models.Operation) (*NormalizedRecord, error) {
	factory, ok := v.schemas[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	if raw == nil {
		return nil, newError("record", "record must be a JSON object")
	}

	schema := factory()
	if err := decode(raw, schema); err != nil {
		return nil, err
	}

	if err := v.validate.Struct(schema); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		var fields []FieldError
		for _, fe := range verrs {
			if op == models.OperationUpdate && fe.Tag() == "required" {
				continue
			}
			fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		if len(fields) > 0 {
			return nil, &Error{Fields: fields}
		}
	}

	doc := schema.Document(op, v.now())
	if op == models.OperationUpdate && len(doc) == 0 {
		return nil, newError("record", "no fields to update")
	}

	return &NormalizedRecord{
		ID:        RecordIdentifier(raw),
		Operation: op,
		Fields:    doc,
	}, nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be numeric", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func decode(raw map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       coerceHook,
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) {
			fields := make([]FieldError, 0, len(merr.Errors))
			for _, msg := range merr.Errors {
				field := fieldFromDecodeError(msg)
				fields = append(fields, FieldError{Field: field, Message: decodeMessage(field, msg)})
			}
			return &Error{Fields: fields}
		}
		return newError("record", "%s", err.Error())
	}
	return nil
}
