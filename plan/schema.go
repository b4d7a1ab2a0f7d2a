package plan

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of the wire format, fully expanded so it can be handed to
// structured-output APIs that do not resolve references.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	s := r.Reflect(&WirePlan{})
	s.Version = ""
	return s
}

// SchemaMap returns Schema as a generic JSON object.
func SchemaMap() (map[string]interface{}, error) {
	raw, err := json.Marshal(Schema())
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
