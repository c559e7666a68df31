package biolinks

import (
	"encoding/json"
	"strings"
)

const emptyThemeJSON = "{}"

// Theme is the visual configuration of a biolink. Every field is optional.
type Theme struct {
	Background      *string `json:"background,omitempty"`
	ButtonColor     *string `json:"buttonColor,omitempty"`
	ButtonTextColor *string `json:"buttonTextColor,omitempty"`
	TextColor       *string `json:"textColor,omitempty"`
	FontFamily      *string `json:"fontFamily,omitempty"`
}

// EncodeTheme serializes the theme into the opaque stored form.
func EncodeTheme(theme Theme) (string, error) {
	encoded, err := json.Marshal(theme)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeTheme parses the stored form. An empty blob yields an empty theme.
func DecodeTheme(raw string) (Theme, error) {
	var theme Theme
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return theme, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &theme); err != nil {
		return Theme{}, err
	}
	return theme, nil
}
