package catalog

import "strings"

// Exercise is one entry of the exercise catalog. Name is the canonical
// english name, the translated names are optional.
type Exercise struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	NameEn       string   `json:"nameEn,omitempty"`
	NameFr       string   `json:"nameFr,omitempty"`
	NameIt       string   `json:"nameIt,omitempty"`
	NameEs       string   `json:"nameEs,omitempty"`
	NameNl       string   `json:"nameNl,omitempty"`
	Description  string   `json:"description,omitempty"`
	MuscleGroups []string `json:"muscleGroups"`
}

// TranslatedName returns the exercise name for the given language,
// falling back to the canonical name when no translation is set.
func (e Exercise) TranslatedName(lang string) string {
	var translated string
	switch strings.ToLower(lang) {
	case "en":
		translated = e.NameEn
	case "fr":
		translated = e.NameFr
	case "it":
		translated = e.NameIt
	case "es":
		translated = e.NameEs
	case "nl":
		translated = e.NameNl
	}
	if translated == "" {
		return e.Name
	}
	return translated
}

// AllNames returns the canonical name plus every set translation.
func (e Exercise) AllNames() []string {
	names := []string{e.Name}
	for _, n := range []string{e.NameEn, e.NameFr, e.NameIt, e.NameEs, e.NameNl} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}
