// Package describe composes the narration text from project metadata.
package describe

import (
	"strings"
)

// Project is the metadata a description is built from. Every field is
// optional.
type Project struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
	// Notes is appended as the closing sentence.
	Notes string `yaml:"notes" json:"notes"`
}

// Generate builds a sentence such as
//
//	loqa-narrator version 0.1.0. Narrates things. It is a component library
//	that includes reusable components such as Button, Card.
//
// Missing fields are left out without leaving doubled spaces or periods.
func Generate(p Project, components []string) string {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "This project"
	}
	head := name
	if v := strings.TrimSpace(p.Version); v != "" {
		head += " version " + v
	}

	sentences := []string{sentence(head)}
	if desc := strings.TrimSpace(p.Description); desc != "" {
		sentences = append(sentences, sentence(desc))
	}

	var names []string
	for _, c := range components {
		if c = strings.TrimSpace(c); c != "" {
			names = append(names, c)
		}
	}
	if len(names) > 0 {
		sentences = append(sentences, "It is a component library that includes reusable components such as "+strings.Join(names, ", ")+".")
	}
	if notes := strings.TrimSpace(p.Notes); notes != "" {
		sentences = append(sentences, sentence(notes))
	}
	return strings.Join(sentences, " ")
}

func sentence(s string) string {
	s = strings.TrimRight(s, ". ")
	return s + "."
}
