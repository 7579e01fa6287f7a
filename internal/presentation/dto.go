package presentation

import (
	"sort"

	"github.com/zjrosen/hlpipe/internal/grammar"
)

// LanguageDTO is one grammar in a listing.
type LanguageDTO struct {
	Name      string   `json:"name" yaml:"name"`
	Aliases   []string `json:"aliases" yaml:"aliases"`
	Filenames []string `json:"filenames,omitempty" yaml:"filenames,omitempty"`
}

// AliasDTO is one configured flag rename.
type AliasDTO struct {
	Flag     string `json:"flag" yaml:"flag"`
	Language string `json:"language" yaml:"language"`
}

// LanguageListDTO is the output of the languages command.
type LanguageListDTO struct {
	Languages []LanguageDTO `json:"languages" yaml:"languages"`
	Aliases   []AliasDTO    `json:"aliases" yaml:"aliases"`
}

// FromLanguages builds a listing from registry grammars and configured
// aliases. Aliases are sorted by flag.
func FromLanguages(langs []grammar.Language, aliases map[string]string) LanguageListDTO {
	out := LanguageListDTO{
		Languages: make([]LanguageDTO, len(langs)),
		Aliases:   make([]AliasDTO, 0, len(aliases)),
	}
	for i, l := range langs {
		a := l.Aliases
		if a == nil {
			a = []string{}
		}
		out.Languages[i] = LanguageDTO{
			Name:      l.Name,
			Aliases:   a,
			Filenames: l.Filenames,
		}
	}
	for flag, lang := range aliases {
		out.Aliases = append(out.Aliases, AliasDTO{Flag: flag, Language: lang})
	}
	sort.Slice(out.Aliases, func(i, j int) bool { return out.Aliases[i].Flag < out.Aliases[j].Flag })
	return out
}
