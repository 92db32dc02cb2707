package schema

import (
	"time"

	"github.com/hamba/avro/v2"
)

const CatalogChangeSchemaTextV1 = `{
	"type": "record",
	"namespace": "storefront.catalog",
	"name": "catalog_change",
	"fields": [
		{"name": "ref", "type": "string"},
		{"name": "kind", "type": {"type": "enum", "name": "ref_kind", "symbols": ["price", "product"]}},
		{"name": "product_id", "type": "string", "default": ""},
		{"name": "available", "type": "boolean"},
		{"name": "occurred_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

type CatalogChangeV1 struct {
	Ref        string    `avro:"ref"`
	Kind       string    `avro:"kind"`
	ProductID  string    `avro:"product_id"`
	Available  bool      `avro:"available"`
	OccurredAt time.Time `avro:"occurred_at"`
}

func CatalogChangeV1Avro() avro.Schema {
	return avro.MustParse(CatalogChangeSchemaTextV1)
}

// AvailabilitySchemaTextV1 describes the value kept per price or product
// id in the availability table.
const AvailabilitySchemaTextV1 = `{
	"type": "record",
	"namespace": "storefront.catalog",
	"name": "availability",
	"fields": [
		{"name": "available", "type": "boolean"},
		{"name": "updated_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

type AvailabilityV1 struct {
	Available bool      `avro:"available"`
	UpdatedAt time.Time `avro:"updated_at"`
}

func AvailabilityV1Avro() avro.Schema {
	return avro.MustParse(AvailabilitySchemaTextV1)
}
