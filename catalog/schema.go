package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// flowerSchemaJSON is the contract every listed item must satisfy.
// IsFavorite is optional and may be 0/1 or a bool.
const flowerSchemaJSON = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["Id", "ShopId", "Name", "Description", "Price", "DateAdded", "ImageUrl"],
	"properties": {
		"Id":          {"type": "integer"},
		"ShopId":      {"type": "integer"},
		"Name":        {"type": "string"},
		"Description": {"type": "string"},
		"Price":       {"type": "number"},
		"DateAdded":   {"type": "string"},
		"ImageUrl":    {"type": "string"},
		"IsFavorite":  {"type": ["integer", "boolean", "null"]}
	}
}`

// rootField is how the validator names the document itself.
const rootField = "(root)"

var flowerSchema = mustSchema(flowerSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("catalog: bad flower schema: %v", err))
	}
	return schema
}

// ValidationError describes why a listed item was dropped.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("item %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("item %d: field %s %s", e.Index, e.Field, e.Reason)
}

// wireFlower takes the numbers as float64 so integral values written as
// 1.0 still decode.
type wireFlower struct {
	ID          float64     `json:"Id"`
	ShopID      float64     `json:"ShopId"`
	Name        string      `json:"Name"`
	Description string      `json:"Description"`
	Price       float64     `json:"Price"`
	DateAdded   string      `json:"DateAdded"`
	ImageURL    string      `json:"ImageUrl"`
	IsFavorite  interface{} `json:"IsFavorite"`
}

// validateFlower checks raw against flowerSchema and decodes it. It returns
// every violation, not just the first.
func validateFlower(index int, raw json.RawMessage) (Flower, []ValidationError) {
	result, err := flowerSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Flower{}, []ValidationError{{Index: index, Reason: "is not valid JSON"}}
	}
	if !result.Valid() {
		return Flower{}, schemaErrors(index, result.Errors())
	}

	var w wireFlower
	if err := json.Unmarshal(raw, &w); err != nil {
		return Flower{}, []ValidationError{{Index: index, Reason: err.Error()}}
	}
	f := Flower{
		ID:          int(w.ID),
		ShopID:      int(w.ShopID),
		Name:        w.Name,
		Description: w.Description,
		Price:       w.Price,
		DateAdded:   w.DateAdded,
		ImageURL:    w.ImageURL,
	}
	switch fav := w.IsFavorite.(type) {
	case float64:
		f.IsFavorite = int(fav)
	case bool:
		if fav {
			f.IsFavorite = 1
		}
	}
	return f, nil
}

func schemaErrors(index int, errs []gojsonschema.ResultError) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, re := range errs {
		field := re.Field()
		if field == rootField {
			field = ""
		}
		details := re.Details()

		var reason string
		switch re.Type() {
		case "required":
			field = fmt.Sprint(details["property"])
			reason = "is missing"
		case "invalid_type":
			reason = fmt.Sprintf("must be of type %v, got %v", details["expected"], details["given"])
			if field == "" {
				reason = fmt.Sprintf("is not an object, got %v", details["given"])
			}
		default:
			reason = re.Description()
		}
		out = append(out, ValidationError{Index: index, Field: field, Reason: reason})
	}
	return out
}
