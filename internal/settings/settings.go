package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EditorSettings is the persisted editor configuration document.
type EditorSettings struct {
	FontSize        uint32           `json:"fontSize"`
	WordWrapColumn  uint32           `json:"wordWrapColumn"`
	BackgroundColor string           `json:"backgroundColor"`
	TextColor       string           `json:"textColor"`
	FontFamily      string           `json:"fontFamily"`
	AutoSave        AutoSaveSettings `json:"autoSave"`
	// ResizerRatio is the pane split percentage. Nil means unset, which is
	// not the same as zero.
	ResizerRatio *uint32 `json:"resizerRatio,omitempty"`
}

// AutoSaveSettings controls periodic saving in the shell.
type AutoSaveSettings struct {
	Enabled  bool   `json:"enabled"`
	Interval uint32 `json:"interval"` // seconds
}

// Font stacks offered by the editor. Each ends in a generic family.
const (
	FontGothic = `"UD デジタル 教科書体 N-R", "Hiragino Sans", "Yu Gothic UI", "Meiryo UI", sans-serif`
	FontMincho = `"Noto Serif JP", "Yu Mincho", "YuMincho", "Hiragino Mincho Pro", serif`
)

// FontFamily is a named font stack.
type FontFamily struct {
	Key   string
	Label string
	Stack string
}

// FontFamilies returns the font stacks the editor offers, default first.
func FontFamilies() []FontFamily {
	return []FontFamily{
		{Key: "gothic", Label: "Gothic", Stack: FontGothic},
		{Key: "mincho", Label: "Mincho", Stack: FontMincho},
	}
}

// Defaults returns a fresh copy of the default settings. It is also the
// recovery value written on first load.
func Defaults() EditorSettings {
	ratio := uint32(50)
	return EditorSettings{
		FontSize:        16,
		WordWrapColumn:  60,
		BackgroundColor: "#ffffff",
		TextColor:       "#000000",
		FontFamily:      FontGothic,
		AutoSave: AutoSaveSettings{
			Enabled:  true,
			Interval: 10,
		},
		ResizerRatio: &ratio,
	}
}

// Ratio returns a pointer to r, for setting ResizerRatio.
func Ratio(r uint32) *uint32 { return &r }

// Equal reports whether a and b are equal field for field, treating an unset
// ResizerRatio as distinct from any set value.
func Equal(a, b EditorSettings) bool {
	if a.FontSize != b.FontSize ||
		a.WordWrapColumn != b.WordWrapColumn ||
		a.BackgroundColor != b.BackgroundColor ||
		a.TextColor != b.TextColor ||
		a.FontFamily != b.FontFamily ||
		a.AutoSave != b.AutoSave {
		return false
	}
	if (a.ResizerRatio == nil) != (b.ResizerRatio == nil) {
		return false
	}
	return a.ResizerRatio == nil || *a.ResizerRatio == *b.ResizerRatio
}

// wireSettings mirrors EditorSettings with pointer fields so that absent and
// null required fields can be told apart from zero values.
type wireSettings struct {
	FontSize        *uint32       `json:"fontSize"`
	WordWrapColumn  *uint32       `json:"wordWrapColumn"`
	BackgroundColor *string       `json:"backgroundColor"`
	TextColor       *string       `json:"textColor"`
	FontFamily      *string       `json:"fontFamily"`
	AutoSave        *wireAutoSave `json:"autoSave"`
	ResizerRatio    *uint32       `json:"resizerRatio"`
}

type wireAutoSave struct {
	Enabled  *bool   `json:"enabled"`
	Interval *uint32 `json:"interval"`
}

// Decode parses a settings document. Unknown fields are ignored; a missing
// or null required field makes the whole document invalid.
func Decode(data []byte) (EditorSettings, error) {
	var w wireSettings
	if err := json.Unmarshal(data, &w); err != nil {
		return EditorSettings{}, err
	}

	var missing []string
	if w.FontSize == nil {
		missing = append(missing, "fontSize")
	}
	if w.WordWrapColumn == nil {
		missing = append(missing, "wordWrapColumn")
	}
	if w.BackgroundColor == nil {
		missing = append(missing, "backgroundColor")
	}
	if w.TextColor == nil {
		missing = append(missing, "textColor")
	}
	if w.FontFamily == nil {
		missing = append(missing, "fontFamily")
	}
	if w.AutoSave == nil {
		missing = append(missing, "autoSave")
	} else {
		if w.AutoSave.Enabled == nil {
			missing = append(missing, "autoSave.enabled")
		}
		if w.AutoSave.Interval == nil {
			missing = append(missing, "autoSave.interval")
		}
	}
	if len(missing) > 0 {
		return EditorSettings{}, fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", "))
	}

	return EditorSettings{
		FontSize:        *w.FontSize,
		WordWrapColumn:  *w.WordWrapColumn,
		BackgroundColor: *w.BackgroundColor,
		TextColor:       *w.TextColor,
		FontFamily:      *w.FontFamily,
		AutoSave: AutoSaveSettings{
			Enabled:  *w.AutoSave.Enabled,
			Interval: *w.AutoSave.Interval,
		},
		ResizerRatio: w.ResizerRatio,
	}, nil
}

// Encode renders s as pretty-printed JSON with a trailing newline.
func Encode(s EditorSettings) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
