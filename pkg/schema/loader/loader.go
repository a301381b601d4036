// Package loader reads form schemas from JSON or YAML documents. A document
// declares pages (or, for single page forms, sections) using the field names
// of pkg/schema. Conditions may be written as objects
//
//	conditionalOn: {key: state, operator: in, value: [CA, FL]}
//
// or as rule strings compiled by pkg/visibility/expr
//
//	conditionalOn: numberOfTigers >= 5 && tigersAreOld == "Yes"
//
// Options may be plain values or {label, value} pairs. Validators may be
// strings such as "required", "min:0" and "pattern:^[0-9]{5}$", or objects
// with a kind and parameters.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formengine/pkg/schema"
	"github.com/goliatone/go-formengine/pkg/visibility/expr"
)

var (
	// ErrEmptyDocument is returned for blank input.
	ErrEmptyDocument = errors.New("loader: document is empty")
	// ErrDuplicateForm is returned by LoadFS when two files share an id.
	ErrDuplicateForm = errors.New("loader: duplicate form id")
)

// Form is a decoded schema document.
type Form struct {
	ID     string
	Title  string
	Source string
	Pages  []schema.Page
}

type documentFile struct {
	ID       string        `json:"id" yaml:"id"`
	Title    string        `json:"title" yaml:"title"`
	Pages    []pageFile    `json:"pages" yaml:"pages"`
	Sections []sectionFile `json:"sections" yaml:"sections"`
}

type pageFile struct {
	Title    string        `json:"title" yaml:"title"`
	Sections []sectionFile `json:"sections" yaml:"sections"`
}

type sectionFile struct {
	Title         string         `json:"title" yaml:"title"`
	ConditionalOn any            `json:"conditionalOn" yaml:"conditionalOn"`
	RepeatFor     any            `json:"repeatFor" yaml:"repeatFor"`
	Questions     []questionFile `json:"questions" yaml:"questions"`
}

type questionFile struct {
	Key           string         `json:"key" yaml:"key"`
	Label         string         `json:"label" yaml:"label"`
	Type          string         `json:"type" yaml:"type"`
	Options       []any          `json:"options" yaml:"options"`
	Validators    []any          `json:"validators" yaml:"validators"`
	ConditionalOn any            `json:"conditionalOn" yaml:"conditionalOn"`
	Math          *mathFile      `json:"math" yaml:"math"`
	Min           *float64       `json:"min" yaml:"min"`
	Max           *float64       `json:"max" yaml:"max"`
	Disabled      bool           `json:"disabled" yaml:"disabled"`
	Children      []questionFile `json:"children" yaml:"children"`
	InputType     string         `json:"inputType" yaml:"inputType"`
	Placeholder   string         `json:"placeholder" yaml:"placeholder"`
	Help          string         `json:"help" yaml:"help"`
	Default       any            `json:"default" yaml:"default"`
	Widget        string         `json:"widget" yaml:"widget"`
	OptionsFrom   string         `json:"optionsFrom" yaml:"optionsFrom"`
}

type mathFile struct {
	Operation string   `json:"operation" yaml:"operation"`
	DependsOn []string `json:"dependsOn" yaml:"dependsOn"`
}

// Parse decodes data as JSON, falling back to YAML, and checks the resulting
// schema. source names the document in errors.
func Parse(data []byte, source string) (Form, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Form{}, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
	}

	var doc documentFile
	if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil {
		doc = documentFile{}
		if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
			return Form{}, fmt.Errorf("loader: parse %s: invalid JSON or YAML: %w", source, yamlErr)
		}
	}

	form, err := normaliseDocument(doc, source)
	if err != nil {
		return Form{}, err
	}
	if err := schema.Check(form.Pages); err != nil {
		return Form{}, fmt.Errorf("loader: %s: %w", source, err)
	}
	return form, nil
}

// LoadFile reads and parses a single document from fsys.
func LoadFile(fsys fs.FS, name string) (Form, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Form{}, fmt.Errorf("loader: read %s: %w", name, err)
	}
	return Parse(data, name)
}

// LoadFS walks fsys and parses every JSON or YAML file, keyed by form id. A
// document without an id uses its file name without extension.
func LoadFS(fsys fs.FS) (map[string]Form, error) {
	forms := map[string]Form{}
	if fsys == nil {
		return forms, nil
	}

	err := fs.WalkDir(fsys, ".", func(name string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isSchemaFile(name) {
			return nil
		}
		form, err := LoadFile(fsys, name)
		if err != nil {
			return err
		}
		if existing, dup := forms[form.ID]; dup {
			return fmt.Errorf("%w %q (%s and %s)", ErrDuplicateForm, form.ID, existing.Source, name)
		}
		forms[form.ID] = form
		return nil
	})
	if err != nil {
		return nil, err
	}
	return forms, nil
}

// IDs returns the ids of forms in sorted order.
func IDs(forms map[string]Form) []string {
	ids := make([]string, 0, len(forms))
	for id := range forms {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func isSchemaFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func normaliseDocument(doc documentFile, source string) (Form, error) {
	form := Form{ID: strings.TrimSpace(doc.ID), Title: doc.Title, Source: source}
	if form.ID == "" {
		base := path.Base(source)
		form.ID = strings.TrimSuffix(base, path.Ext(base))
	}

	pages := doc.Pages
	if len(pages) == 0 && len(doc.Sections) > 0 {
		pages = []pageFile{{Title: doc.Title, Sections: doc.Sections}}
	}
	if len(pages) == 0 {
		return Form{}, fmt.Errorf("loader: %s declares no pages", source)
	}

	var errs []error
	for pi, raw := range pages {
		page := schema.Page{Title: raw.Title, Sections: make([]schema.Section, 0, len(raw.Sections))}
		for si, rawSection := range raw.Sections {
			where := fmt.Sprintf("%s: pages[%d].sections[%d]", source, pi, si)
			section, err := normaliseSection(rawSection)
			if err != nil {
				errs = append(errs, fmt.Errorf("loader: %s: %w", where, err))
				continue
			}
			page.Sections = append(page.Sections, section)
		}
		form.Pages = append(form.Pages, page)
	}
	if err := errors.Join(errs...); err != nil {
		return Form{}, err
	}
	return form, nil
}

func normaliseSection(raw sectionFile) (schema.Section, error) {
	section := schema.Section{Title: raw.Title}

	cond, err := normaliseCondition(raw.ConditionalOn)
	if err != nil {
		return section, fmt.Errorf("conditionalOn: %w", err)
	}
	section.ConditionalOn = cond

	switch rf := raw.RepeatFor.(type) {
	case nil:
	case string:
		section.RepeatFor = &schema.RepeatFor{Key: strings.TrimSpace(rf)}
	case map[string]any:
		key, _ := rf["key"].(string)
		section.RepeatFor = &schema.RepeatFor{Key: strings.TrimSpace(key)}
	default:
		return section, fmt.Errorf("repeatFor: unsupported value %T", raw.RepeatFor)
	}

	// a missing questions list marks a malformed section that the engine
	// skips; an explicit empty list is kept as an empty section
	if raw.Questions != nil {
		section.Questions = make([]schema.Question, 0, len(raw.Questions))
	}
	for qi, rq := range raw.Questions {
		q, err := normaliseQuestion(rq)
		if err != nil {
			return section, fmt.Errorf("questions[%d]: %w", qi, err)
		}
		section.Questions = append(section.Questions, q)
	}
	return section, nil
}

func normaliseQuestion(raw questionFile) (schema.Question, error) {
	q := schema.Question{
		Key:         strings.TrimSpace(raw.Key),
		Label:       raw.Label,
		Type:        schema.QuestionType(strings.TrimSpace(raw.Type)),
		Min:         raw.Min,
		Max:         raw.Max,
		Disabled:    raw.Disabled,
		InputType:   raw.InputType,
		Placeholder: raw.Placeholder,
		Help:        raw.Help,
		Default:     raw.Default,
		Widget:      strings.TrimSpace(raw.Widget),
		OptionsFrom: strings.TrimSpace(raw.OptionsFrom),
	}

	for _, opt := range raw.Options {
		option, err := normaliseOption(opt)
		if err != nil {
			return q, fmt.Errorf("%s: options: %w", q.Key, err)
		}
		q.Options = append(q.Options, option)
	}

	for _, v := range raw.Validators {
		rule, err := normaliseRule(v)
		if err != nil {
			return q, fmt.Errorf("%s: validators: %w", q.Key, err)
		}
		q.Validators = append(q.Validators, rule)
	}

	cond, err := normaliseCondition(raw.ConditionalOn)
	if err != nil {
		return q, fmt.Errorf("%s: conditionalOn: %w", q.Key, err)
	}
	q.ConditionalOn = cond

	if raw.Math != nil {
		q.Math = &schema.Math{
			Operation: schema.MathOperation(raw.Math.Operation).Normalize(),
			DependsOn: slices.Clone(raw.Math.DependsOn),
		}
	}

	for ci, rc := range raw.Children {
		child, err := normaliseQuestion(rc)
		if err != nil {
			return q, fmt.Errorf("children[%d]: %w", ci, err)
		}
		q.Children = append(q.Children, child)
	}
	return q, nil
}

func normaliseOption(raw any) (schema.Option, error) {
	switch v := raw.(type) {
	case map[string]any:
		value, hasValue := v["value"]
		label, _ := v["label"].(string)
		if !hasValue {
			value = label
		}
		if label == "" {
			label = fmt.Sprint(value)
		}
		return schema.Option{Label: label, Value: value}, nil
	case nil:
		return schema.Option{}, errors.New("option is empty")
	default:
		return schema.Option{Label: fmt.Sprint(v), Value: v}, nil
	}
}

var ruleKinds = []string{
	schema.RuleRequired, schema.RuleMin, schema.RuleMax, schema.RuleMinLength,
	schema.RuleMaxLength, schema.RulePattern, schema.RuleMath,
}

func canonicalKind(kind string) string {
	kind = strings.TrimSpace(kind)
	for _, known := range ruleKinds {
		if strings.EqualFold(kind, known) {
			return known
		}
	}
	return kind
}

func normaliseRule(raw any) (schema.ValidationRule, error) {
	switch v := raw.(type) {
	case string:
		return parseRuleString(v)
	case map[string]any:
		kind, _ := v["kind"].(string)
		rule := schema.ValidationRule{Kind: canonicalKind(kind)}
		if rule.Kind == "" {
			return rule, errors.New("validator object requires a kind")
		}
		params := map[string]string{}
		if nested, ok := v["params"].(map[string]any); ok {
			for name, value := range nested {
				params[name] = scalarString(value)
			}
		}
		for name, value := range v {
			if name == "kind" || name == "params" {
				continue
			}
			params[name] = scalarString(value)
		}
		if rule.Kind == schema.RulePattern {
			if _, ok := params["pattern"]; !ok {
				if value, ok := params["value"]; ok {
					params["pattern"] = value
					delete(params, "value")
				}
			}
		}
		if len(params) > 0 {
			rule.Params = params
		}
		return rule, nil
	default:
		return schema.ValidationRule{}, fmt.Errorf("unsupported validator %T", raw)
	}
}

// parseRuleString handles "kind" and "kind:argument". Math rules take
// "math:operator:threshold[:message]".
func parseRuleString(raw string) (schema.ValidationRule, error) {
	kind, arg, hasArg := strings.Cut(strings.TrimSpace(raw), ":")
	kind = canonicalKind(kind)
	switch kind {
	case "":
		return schema.ValidationRule{}, errors.New("validator is empty")
	case schema.RuleRequired:
		return schema.Required(), nil
	case schema.RulePattern:
		return schema.Pattern(arg), nil
	case schema.RuleMath:
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) < 2 {
			return schema.ValidationRule{}, fmt.Errorf("math validator %q needs an operator and a threshold", raw)
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return schema.ValidationRule{}, fmt.Errorf("math validator %q: %w", raw, err)
		}
		message := ""
		if len(parts) == 3 {
			message = parts[2]
		}
		return schema.MathRule(strings.TrimSpace(parts[0]), threshold, message), nil
	}
	if !hasArg {
		return schema.ValidationRule{Kind: kind}, nil
	}
	return schema.ValidationRule{Kind: kind, Params: map[string]string{"value": strings.TrimSpace(arg)}}, nil
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

var operatorNames = map[string]schema.ConditionalOperator{
	"equals":             schema.OpEquals,
	"eq":                 schema.OpEquals,
	"==":                 schema.OpEquals,
	"notequals":          schema.OpNotEquals,
	"ne":                 schema.OpNotEquals,
	"!=":                 schema.OpNotEquals,
	"greaterthan":        schema.OpGreaterThan,
	"gt":                 schema.OpGreaterThan,
	">":                  schema.OpGreaterThan,
	"lessthan":           schema.OpLessThan,
	"lt":                 schema.OpLessThan,
	"<":                  schema.OpLessThan,
	"greaterthanorequal": schema.OpGreaterThanOrEqual,
	"gte":                schema.OpGreaterThanOrEqual,
	">=":                 schema.OpGreaterThanOrEqual,
	"lessthanorequal":    schema.OpLessThanOrEqual,
	"lte":                schema.OpLessThanOrEqual,
	"<=":                 schema.OpLessThanOrEqual,
	"in":                 schema.OpIn,
	"!!":                 schema.OpIsTruthy,
	"istruthy":           schema.OpIsTruthy,
	"truthy":             schema.OpIsTruthy,
	"any":                schema.OpAny,
	"some":               schema.OpAny,
	"all":                schema.OpAll,
	"not":                schema.OpNot,
}

// operator maps a spelled operator to its constant. Unknown names are kept
// verbatim so schema.Check can report them.
func operator(raw string) schema.ConditionalOperator {
	if op, ok := operatorNames[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return op
	}
	return schema.ConditionalOperator(raw)
}

func normaliseCondition(raw any) (schema.Condition, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return expr.Compile(v)
	case map[string]any:
		return conditionObject(v)
	default:
		return nil, fmt.Errorf("unsupported condition %T", raw)
	}
}

func conditionObject(obj map[string]any) (schema.Condition, error) {
	opName, _ := obj["operator"].(string)
	op := operator(opName)

	if rawChildren, grouped := obj["conditions"]; grouped || op.IsGroup() {
		list, ok := rawChildren.([]any)
		if !ok && rawChildren != nil {
			return nil, fmt.Errorf("conditions must be a list, got %T", rawChildren)
		}
		group := &schema.Group{Operator: op}
		for i, child := range list {
			cond, err := normaliseCondition(child)
			if err != nil {
				return nil, fmt.Errorf("conditions[%d]: %w", i, err)
			}
			group.Conditions = append(group.Conditions, cond)
		}
		return group, nil
	}

	key, _ := obj["key"].(string)
	leaf := &schema.Leaf{Key: strings.TrimSpace(key), Operator: op, Value: obj["value"]}
	if opName == "" {
		leaf.Operator = schema.OpEquals
	}
	if leaf.Operator == schema.OpIn {
		if _, isList := leaf.Value.([]any); !isList && leaf.Value != nil {
			leaf.Value = []any{leaf.Value}
		}
	}
	return leaf, nil
}
