package schema

// QuestionType enumerates the supported input kinds.
type QuestionType string

const (
	TypeText          QuestionType = "text"
	TypeNumber        QuestionType = "number"
	TypeSelect        QuestionType = "select"
	TypeRadio         QuestionType = "radio"
	TypeTextarea      QuestionType = "textarea"
	TypeCheckboxGroup QuestionType = "checkbox-group"
	TypeGroup         QuestionType = "group"
)

// Valid reports whether t is one of the known question types. The empty type
// is treated as text.
func (t QuestionType) Valid() bool {
	switch t {
	case "", TypeText, TypeNumber, TypeSelect, TypeRadio, TypeTextarea, TypeCheckboxGroup, TypeGroup:
		return true
	default:
		return false
	}
}

// Option is a selectable choice for select, radio and checkbox-group
// questions.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Question describes a single input. Children are nested questions whose
// visibility is gated by their parent's. Widget optionally names the control
// a front end should use instead of the one chosen from Type. OptionsFrom
// names a shared option list that fills Options when none are inline.
type Question struct {
	Key           string           `json:"key"`
	Label         string           `json:"label,omitempty"`
	Type          QuestionType     `json:"type,omitempty"`
	Options       []Option         `json:"options,omitempty"`
	Validators    []ValidationRule `json:"validators,omitempty"`
	ConditionalOn Condition        `json:"-"`
	Math          *Math            `json:"math,omitempty"`
	Min           *float64         `json:"min,omitempty"`
	Max           *float64         `json:"max,omitempty"`
	Disabled      bool             `json:"disabled,omitempty"`
	Children      []Question       `json:"children,omitempty"`
	InputType     string           `json:"inputType,omitempty"`
	Placeholder   string           `json:"placeholder,omitempty"`
	Help          string           `json:"help,omitempty"`
	Default       any              `json:"default,omitempty"`
	Widget        string           `json:"widget,omitempty"`
	OptionsFrom   string           `json:"optionsFrom,omitempty"`
}

// Derived reports whether the question's value is computed from other
// fields.
func (q Question) Derived() bool {
	return q.Math != nil
}

// Multiple reports whether the question holds a list value.
func (q Question) Multiple() bool {
	return q.Type == TypeCheckboxGroup
}

// OptionLabel resolves value to the label of the matching option, falling
// back to ok=false when no option matches.
func (q Question) OptionLabel(value any) (string, bool) {
	for _, opt := range q.Options {
		if equalOption(opt.Value, value) {
			return opt.Label, true
		}
	}
	return "", false
}

// RepeatFor names the field whose numeric value drives how many times a
// section is instantiated.
type RepeatFor struct {
	Key string `json:"key"`
}

// Section groups questions. A nil Questions slice marks a malformed section
// that the engine skips.
type Section struct {
	Title         string     `json:"title"`
	Questions     []Question `json:"questions"`
	ConditionalOn Condition  `json:"-"`
	RepeatFor     *RepeatFor `json:"repeatFor,omitempty"`
}

// Repeats reports whether the section is instantiated per count.
func (s Section) Repeats() bool {
	return s.RepeatFor != nil && s.RepeatFor.Key != ""
}

// Page is one step of a multi-page form.
type Page struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// InitialValue returns the value a freshly registered field for q starts
// with. List-valued questions always start with an empty list.
func InitialValue(q Question) any {
	if q.Multiple() {
		list := []any{}
		if items, ok := q.Default.([]any); ok {
			list = append(list, items...)
		}
		return list
	}
	return q.Default
}

// EmptyValue is the value a hidden field is cleared to.
func EmptyValue(q Question) any {
	if q.Multiple() {
		return []any{}
	}
	return nil
}

// Walk visits every question of the form depth first, passing the section
// each question belongs to. Returning false from fn stops the walk.
func Walk(pages []Page, fn func(section Section, q Question) bool) {
	var visit func(s Section, qs []Question) bool
	visit = func(s Section, qs []Question) bool {
		for _, q := range qs {
			if !fn(s, q) {
				return false
			}
			if !visit(s, q.Children) {
				return false
			}
		}
		return true
	}
	for _, page := range pages {
		for _, section := range page.Sections {
			if !visit(section, section.Questions) {
				return
			}
		}
	}
}
