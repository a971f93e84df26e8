package template

import "time"

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Built-in placeholder names resolved from the recipient and the render time.
const (
	BuiltinName  = "name"
	BuiltinEmail = "email"
	BuiltinDate  = "date"
	BuiltinTime  = "time"
)

// Data is the per-recipient input of a render.
type Data struct {
	Now       time.Time
	Variables map[string]string
	Name      string
	Email     string
}

// lookup resolves variables first, then built-ins.
func (d Data) lookup(name string) (string, bool) {
	if v, ok := d.Variables[name]; ok {
		return v, true
	}
	switch name {
	case BuiltinName:
		return d.Name, true
	case BuiltinEmail:
		return d.Email, true
	case BuiltinDate:
		return d.Now.Format(DateLayout), true
	case BuiltinTime:
		return d.Now.Format(TimeLayout), true
	}
	return "", false
}

var sampleValues = map[string]string{
	"company":    "Acme Corporation",
	"phone":      "+1-555-0123",
	"message":    "This is a sample message for template testing.",
	"first_name": "John",
	"last_name":  "Doe",
	"full_name":  "John Doe",
}

// SampleData builds preview data for a template: provided values win, known names get
// canned samples, anything else becomes "[name]".
func SampleData(t Template, provided map[string]string, now time.Time) Data {
	data := Data{
		Name:      "John Doe",
		Email:     "john.doe@example.com",
		Now:       now,
		Variables: make(map[string]string),
	}
	for _, name := range t.Placeholders() {
		switch name {
		case BuiltinName, BuiltinEmail, BuiltinDate, BuiltinTime:
			continue
		}
		if v, ok := sampleValues[name]; ok {
			data.Variables[name] = v
			continue
		}
		data.Variables[name] = "[" + name + "]"
	}
	for k, v := range provided {
		switch k {
		case BuiltinName:
			data.Name = v
		case BuiltinEmail:
			data.Email = v
		default:
			data.Variables[k] = v
		}
	}
	return data
}
