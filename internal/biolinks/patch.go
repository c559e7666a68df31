package biolinks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNullField indicates that a non-nullable field was explicitly set to null.
var ErrNullField = errors.New("biolinks: field must not be null")

// ErrEmptyField indicates that a required text field was set to an empty value.
var ErrEmptyField = errors.New("biolinks: field must not be empty")

// Optional distinguishes an absent field from a field explicitly set, including to null.
type Optional[T any] struct {
	value   T
	present bool
	null    bool
}

// Some returns a present Optional holding value.
func Some[T any](value T) Optional[T] {
	return Optional[T]{value: value, present: true}
}

// Null returns a present Optional that was explicitly set to null.
func Null[T any]() Optional[T] {
	return Optional[T]{present: true, null: true}
}

// Get returns the value and whether the field was supplied.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// IsPresent reports whether the field was supplied.
func (o Optional[T]) IsPresent() bool {
	return o.present
}

// IsNull reports whether the field was supplied as null.
func (o Optional[T]) IsNull() bool {
	return o.present && o.null
}

// UnmarshalJSON marks the field present. Absent JSON keys never reach this method.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	o.null = bytes.Equal(bytes.TrimSpace(data), []byte("null"))
	if o.null {
		var zero T
		o.value = zero
		return nil
	}
	return json.Unmarshal(data, &o.value)
}

// BiolinkPatch lists the updatable biolink fields.
type BiolinkPatch struct {
	Title              Optional[string]  `json:"title"`
	Bio                Optional[string]  `json:"bio"`
	Theme              Optional[Theme]   `json:"theme"`
	AvatarURL          Optional[*string] `json:"avatar_url"`
	Published          Optional[bool]    `json:"published"`
	CustomDomain       Optional[*string] `json:"custom_domain"`
	DomainVerified     Optional[bool]    `json:"domain_verified"`
	EnableEmailCapture Optional[bool]    `json:"enable_email_capture"`
}

func (p BiolinkPatch) columns() (map[string]any, error) {
	columns := make(map[string]any)
	if err := putRequiredText(columns, "title", p.Title); err != nil {
		return nil, err
	}
	if p.Bio.IsNull() {
		columns["bio"] = ""
	} else if bio, ok := p.Bio.Get(); ok {
		columns["bio"] = bio
	}
	if p.Theme.IsNull() {
		columns["theme_json"] = emptyThemeJSON
	} else if theme, ok := p.Theme.Get(); ok {
		encoded, err := EncodeTheme(theme)
		if err != nil {
			return nil, fmt.Errorf("theme: %w", err)
		}
		columns["theme_json"] = encoded
	}
	if avatarURL, ok := p.AvatarURL.Get(); ok {
		columns["avatar_url"] = nullableText(avatarURL)
	}
	if err := putBool(columns, "published", p.Published); err != nil {
		return nil, err
	}
	if customDomain, ok := p.CustomDomain.Get(); ok {
		columns["custom_domain"] = nullableText(customDomain)
	}
	if err := putBool(columns, "domain_verified", p.DomainVerified); err != nil {
		return nil, err
	}
	if err := putBool(columns, "enable_email_capture", p.EnableEmailCapture); err != nil {
		return nil, err
	}
	return columns, nil
}

// LinkPatch lists the updatable link fields.
type LinkPatch struct {
	Title   Optional[string]  `json:"title"`
	URL     Optional[string]  `json:"url"`
	Icon    Optional[*string] `json:"icon"`
	Visible Optional[bool]    `json:"visible"`
}

func (p LinkPatch) columns() (map[string]any, error) {
	columns := make(map[string]any)
	if err := putRequiredText(columns, "title", p.Title); err != nil {
		return nil, err
	}
	if err := putRequiredText(columns, "url", p.URL); err != nil {
		return nil, err
	}
	if icon, ok := p.Icon.Get(); ok {
		columns["icon"] = nullableText(icon)
	}
	if err := putBool(columns, "visible", p.Visible); err != nil {
		return nil, err
	}
	return columns, nil
}

// SocialLinkPatch lists the updatable social link fields.
type SocialLinkPatch struct {
	Platform Optional[string] `json:"platform"`
	URL      Optional[string] `json:"url"`
	Visible  Optional[bool]   `json:"visible"`
	Position Optional[int64]  `json:"position"`
}

func (p SocialLinkPatch) columns() (map[string]any, error) {
	columns := make(map[string]any)
	if err := putRequiredText(columns, "platform", p.Platform); err != nil {
		return nil, err
	}
	if err := putRequiredText(columns, "url", p.URL); err != nil {
		return nil, err
	}
	if err := putBool(columns, "visible", p.Visible); err != nil {
		return nil, err
	}
	if p.Position.IsNull() {
		return nil, fmt.Errorf("%w: position", ErrNullField)
	}
	if position, ok := p.Position.Get(); ok {
		columns["position"] = position
	}
	return columns, nil
}

func putRequiredText(columns map[string]any, column string, field Optional[string]) error {
	if field.IsNull() {
		return fmt.Errorf("%w: %s", ErrNullField, column)
	}
	value, ok := field.Get()
	if !ok {
		return nil
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyField, column)
	}
	columns[column] = value
	return nil
}

func putBool(columns map[string]any, column string, field Optional[bool]) error {
	if field.IsNull() {
		return fmt.Errorf("%w: %s", ErrNullField, column)
	}
	if value, ok := field.Get(); ok {
		columns[column] = value
	}
	return nil
}

func nullableText(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
