package campaign

import (
	"encoding/json"
	"fmt"
)

// Variable is one named template value.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Variables is an ordered mapping of variable name to value.
// Order is the column order of the source row and is preserved through storage.
type Variables []Variable

// Get returns the value of the first variable with the given name.
func (v Variables) Get(name string) (string, bool) {
	for _, kv := range v {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return "", false
}

// Set replaces an existing value or appends a new variable.
func (v Variables) Set(name, value string) Variables {
	for i := range v {
		if v[i].Name == name {
			v[i].Value = value
			return v
		}
	}
	return append(v, Variable{Name: name, Value: value})
}

// Map returns the variables as a plain map. Later duplicates are ignored.
func (v Variables) Map() map[string]string {
	m := make(map[string]string, len(v))
	for _, kv := range v {
		if _, ok := m[kv.Name]; !ok {
			m[kv.Name] = kv.Value
		}
	}
	return m
}

func (v Variables) Clone() Variables {
	if v == nil {
		return nil
	}
	return append(Variables(nil), v...)
}

// MarshalJSON encodes variables as an array of [name, value] pairs to keep order.
func (v Variables) MarshalJSON() ([]byte, error) {
	pairs := make([][2]string, len(v))
	for i, kv := range v {
		pairs[i] = [2]string{kv.Name, kv.Value}
	}
	return json.Marshal(pairs)
}

func (v *Variables) UnmarshalJSON(data []byte) error {
	var pairs [][2]string
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("campaign: decode variables: %w", err)
	}
	out := make(Variables, len(pairs))
	for i, p := range pairs {
		out[i] = Variable{Name: p[0], Value: p[1]}
	}
	*v = out
	return nil
}
