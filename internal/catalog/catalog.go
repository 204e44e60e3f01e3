// Package catalog normalizes externally owned case, patient-archetype, and
// student data into the single canonical shape the matching components consume.
//
// Upstream feeds are inconsistent: some export a flat JSON list, some a map of
// category name to case list, and some wrap everything in a "procedures" key.
// Normalization happens once here; everything downstream only ever sees the
// canonical structs.
package catalog

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// Case is a canonical practice case from the case bank.
type Case struct {
	Name        string   `json:"name"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
}

// PatientArchetype is a canonical patient archetype. Categories holds
// canonical tags (e.g. "pediatric", "cardiac"); Comorbidities is free-form.
type PatientArchetype struct {
	Name          string   `json:"name"`
	Categories    []string `json:"categories"`
	Comorbidities []string `json:"comorbidities"`
}

// Student is a trainee. ClassStanding is the experience tier, 1 (newest)
// through 4.
type Student struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ClassStanding int    `json:"class_standing"`
}

// HasCategory reports whether the archetype declares the given canonical tag.
func (p PatientArchetype) HasCategory(tag string) bool {
	for _, c := range p.Categories {
		if strings.EqualFold(c, tag) {
			return true
		}
	}
	return false
}

// ParseCases decodes a case-bank payload in any of the known upstream shapes.
// Malformed input degrades to an empty slice with a logged warning; it never
// returns an error to the caller.
func ParseCases(data []byte) []Case {
	// Shape 1: flat list.
	var flat []Case
	if err := json.Unmarshal(data, &flat); err == nil {
		return compactCases(flat)
	}

	// Shape 2: wrapper object with a "procedures" key.
	var wrapped struct {
		Procedures []Case `json:"procedures"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Procedures != nil {
		return compactCases(wrapped.Procedures)
	}

	// Shape 3: map of category name to case list. The category name becomes a
	// keyword on each case so matching still sees it.
	var grouped map[string][]Case
	if err := json.Unmarshal(data, &grouped); err == nil && len(grouped) > 0 {
		var all []Case
		for category, cases := range grouped {
			if category == "procedures" {
				continue
			}
			for _, c := range cases {
				c.Keywords = append(c.Keywords, strings.ToLower(category))
				all = append(all, c)
			}
		}
		return compactCases(all)
	}

	slog.Warn("case catalog payload did not match any known shape; using empty catalog")
	return nil
}

// ParsePatients decodes a patient-archetype payload: a flat list, a wrapper
// with a "patients" key, or a map of category tag to archetype list.
func ParsePatients(data []byte) []PatientArchetype {
	var flat []PatientArchetype
	if err := json.Unmarshal(data, &flat); err == nil {
		return compactPatients(flat)
	}

	var wrapped struct {
		Patients []PatientArchetype `json:"patients"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Patients != nil {
		return compactPatients(wrapped.Patients)
	}

	var grouped map[string][]PatientArchetype
	if err := json.Unmarshal(data, &grouped); err == nil && len(grouped) > 0 {
		var all []PatientArchetype
		for category, patients := range grouped {
			if category == "patients" {
				continue
			}
			for _, p := range patients {
				if !p.HasCategory(category) {
					p.Categories = append(p.Categories, strings.ToLower(category))
				}
				all = append(all, p)
			}
		}
		return compactPatients(all)
	}

	slog.Warn("patient catalog payload did not match any known shape; using empty catalog")
	return nil
}

// ParseStudents decodes a student roster (flat list only). Entries with an
// out-of-range class standing are dropped with a warning.
func ParseStudents(data []byte) []Student {
	var flat []Student
	if err := json.Unmarshal(data, &flat); err != nil {
		slog.Warn("student roster payload is malformed; using empty roster", "error", err)
		return nil
	}

	var valid []Student
	for _, s := range flat {
		if s.ID == "" {
			slog.Warn("dropping student with empty id")
			continue
		}
		if s.ClassStanding < 1 || s.ClassStanding > 4 {
			slog.Warn("dropping student with invalid class standing", "student", s.ID, "class_standing", s.ClassStanding)
			continue
		}
		valid = append(valid, s)
	}
	return valid
}

// LoadCases reads and normalizes a case-bank file. A missing or unreadable
// file degrades to an empty catalog with a warning.
func LoadCases(path string) []Case {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("reading case catalog", "path", path, "error", err)
		return nil
	}
	return ParseCases(data)
}

// LoadPatients reads and normalizes a patient-archetype file.
func LoadPatients(path string) []PatientArchetype {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("reading patient catalog", "path", path, "error", err)
		return nil
	}
	return ParsePatients(data)
}

// LoadStudents reads and normalizes a student roster file.
func LoadStudents(path string) []Student {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("reading student roster", "path", path, "error", err)
		return nil
	}
	return ParseStudents(data)
}

// compactCases drops entries without a name.
func compactCases(in []Case) []Case {
	var out []Case
	for _, c := range in {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func compactPatients(in []PatientArchetype) []PatientArchetype {
	var out []PatientArchetype
	for _, p := range in {
		if len(p.Categories) == 0 && len(p.Comorbidities) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}
