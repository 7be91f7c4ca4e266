package customresource

import (
	"encoding/json"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bool decodes both JSON booleans and the "true"/"false" strings CloudFormation
// sends for every property value.
type Bool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bool) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*b = Bool(v)
	case string:
		if v == "" {
			*b = false
			return nil
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid boolean %q", v)
		}
		*b = Bool(parsed)
	case nil:
		*b = false
	default:
		return errors.Errorf("invalid boolean %v", raw)
	}
	return nil
}

// Decode maps ResourceProperties into v and validates its `validate` struct tags.
func Decode(props map[string]any, v any) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return errors.Wrap(err, "failed to encode resource properties")
	}
	if err = json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, "failed to decode resource properties")
	}
	if err = validate.Struct(v); err != nil {
		return errors.Wrap(err, "invalid resource properties")
	}
	return nil
}

// Properties decodes the request's ResourceProperties into v.
func (r Request) Properties(v any) error {
	return Decode(r.ResourceProperties, v)
}
