// Package fields decodes the business attributes carried in a task's custom fields.
package fields

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the declared type of a custom field.
type Kind string

const (
	KindDropDown  Kind = "drop_down"
	KindShortText Kind = "short_text"
	KindText      Kind = "text"
	KindNumber    Kind = "number"
	KindCurrency  Kind = "currency"
	KindEmail     Kind = "email"
	KindURL       Kind = "url"
	KindLabels    Kind = "labels"
	KindUsers     Kind = "users"
)

// Option is one entry of a choice field's option table.
type Option struct {
	ID         string
	OrderIndex int
	Label      string
}

// Value is the typed content of a custom field. Implementations are
// ChoiceValue, TextValue, NumberValue, ListValue and RawValue.
type Value interface {
	isValue()
}

// ChoiceValue holds a drop-down selection, stored either as an option id
// or as an option's order index.
type ChoiceValue struct {
	Selected any
	Options  []Option
}

type TextValue struct {
	Text string
}

type NumberValue struct {
	Number float64
}

// ListValue holds multi-valued fields such as labels and users.
type ListValue struct {
	Items []any
}

// RawValue is the fallback for kinds without dedicated handling.
type RawValue struct {
	Raw any
}

func (ChoiceValue) isValue() {}
func (TextValue) isValue()   {}
func (NumberValue) isValue() {}
func (ListValue) isValue()   {}
func (RawValue) isValue()    {}

// Field is a named custom field attached to a task. A nil Value means the
// field is present on the list but unset on the task.
type Field struct {
	Name  string
	Kind  Kind
	Value Value
}

// NewValue builds the typed value for a field of the given kind from its
// decoded JSON representation.
func NewValue(kind Kind, raw any, options []Option) Value {
	if raw == nil {
		return nil
	}
	switch kind {
	case KindDropDown:
		return ChoiceValue{Selected: raw, Options: options}
	case KindShortText, KindText, KindEmail, KindURL:
		if s, ok := raw.(string); ok {
			return TextValue{Text: s}
		}
	case KindNumber, KindCurrency:
		switch v := raw.(type) {
		case float64:
			return NumberValue{Number: v}
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return NumberValue{Number: f}
			}
		}
	case KindLabels, KindUsers:
		if items, ok := raw.([]any); ok {
			return ListValue{Items: items}
		}
	}
	return RawValue{Raw: raw}
}

// Resolve returns the effective value of a field. Choice fields resolve to
// the selected option's label, matching by option id first and by order
// index second; every other kind returns its stored value unchanged.
func Resolve(f Field) (any, bool) {
	switch v := f.Value.(type) {
	case nil:
		return nil, false
	case ChoiceValue:
		opt, ok := v.selectedOption()
		if !ok {
			return nil, false
		}
		return opt.Label, true
	case TextValue:
		return v.Text, true
	case NumberValue:
		return v.Number, true
	case ListValue:
		return v.Items, true
	case RawValue:
		return v.Raw, true
	default:
		return nil, false
	}
}

func (v ChoiceValue) selectedOption() (Option, bool) {
	if id, ok := v.Selected.(string); ok {
		for _, opt := range v.Options {
			if opt.ID == id {
				return opt, true
			}
		}
	}

	index, ok := orderIndex(v.Selected)
	if !ok {
		return Option{}, false
	}
	for _, opt := range v.Options {
		if opt.OrderIndex == index {
			return opt, true
		}
	}
	return Option{}, false
}

func orderIndex(selected any) (int, bool) {
	switch s := selected.(type) {
	case float64:
		if s != float64(int(s)) {
			return 0, false
		}
		return int(s), true
	case int:
		return s, true
	case string:
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// Find returns the field with the given name, compared case-insensitively.
func Find(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// ResolveString resolves the named field and renders it as a string.
func ResolveString(fields []Field, name string) (string, bool) {
	f, ok := Find(fields, name)
	if !ok {
		return "", false
	}
	v, ok := Resolve(f)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return fmt.Sprint(s), true
	}
}
