package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func minPtr(v float64) *float64 { return &v }

func TestValidateRequiredFieldMissing(t *testing.T) {
	v := New()
	schema := Schema{Required: []string{"name"}}
	err := v.Validate(schema, map[string]interface{}{})
	assert.Error(t, err)
}

func TestValidateTypeMismatch(t *testing.T) {
	v := New()
	schema := Schema{Properties: map[string]Property{"text": {Type: "string"}}}
	err := v.Validate(schema, map[string]interface{}{"text": float64(42)})
	assert.Error(t, err)
}

func TestValidateIntegerRejectsFractional(t *testing.T) {
	v := New()
	schema := Schema{Properties: map[string]Property{"count": {Type: "integer"}}}
	err := v.Validate(schema, map[string]interface{}{"count": 1.5})
	assert.Error(t, err)
}

func TestValidateEnumMembership(t *testing.T) {
	v := New()
	schema := Schema{Properties: map[string]Property{"mode": {Enum: []interface{}{"fast", "safe"}}}}

	assert.NoError(t, v.Validate(schema, map[string]interface{}{"mode": "fast"}))
	assert.Error(t, v.Validate(schema, map[string]interface{}{"mode": "slow"}))
}

func TestValidatePattern(t *testing.T) {
	v := New()
	schema := Schema{Properties: map[string]Property{"id": {Pattern: `^[a-z]+$`}}}

	assert.NoError(t, v.Validate(schema, map[string]interface{}{"id": "abc"}))
	assert.Error(t, v.Validate(schema, map[string]interface{}{"id": "ABC123"}))
}

func TestValidateNumericRange(t *testing.T) {
	v := New()
	schema := Schema{Properties: map[string]Property{"level": {Minimum: minPtr(1), Maximum: minPtr(10)}}}

	assert.NoError(t, v.Validate(schema, map[string]interface{}{"level": float64(5)}))
	assert.Error(t, v.Validate(schema, map[string]interface{}{"level": float64(11)}))
	assert.Error(t, v.Validate(schema, map[string]interface{}{"level": float64(0)}))
}

func TestValidateNilSchemaAllowsAnything(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(nil, map[string]interface{}{"anything": "goes"}))
}

func TestValidateIgnoresUndeclaredProperties(t *testing.T) {
	v := New()
	schema := Schema{Properties: map[string]Property{"name": {Type: "string"}}}
	assert.NoError(t, v.Validate(schema, map[string]interface{}{"name": "x", "extra": 1}))
}
