package catalog

import "testing"

func TestParseCasesFlatList(t *testing.T) {
	data := []byte(`[
		{"name": "Appendectomy", "keywords": ["abdominal"], "description": "open approach"},
		{"name": "", "keywords": ["dropped"]},
		{"name": "Thoracotomy"}
	]`)

	cases := ParseCases(data)
	if len(cases) != 2 {
		t.Fatalf("got %d cases, want 2 (nameless entry dropped)", len(cases))
	}
	if cases[0].Name != "Appendectomy" || cases[0].Keywords[0] != "abdominal" {
		t.Errorf("first case not preserved: %+v", cases[0])
	}
}

func TestParseCasesProceduresWrapper(t *testing.T) {
	data := []byte(`{"procedures": [{"name": "CABG"}]}`)
	cases := ParseCases(data)
	if len(cases) != 1 || cases[0].Name != "CABG" {
		t.Fatalf("wrapper shape not unwrapped: %+v", cases)
	}
}

func TestParseCasesGroupedByCategory(t *testing.T) {
	data := []byte(`{
		"Cardiac": [{"name": "Valve Replacement"}],
		"Trauma":  [{"name": "Splenectomy", "keywords": ["emergency"]}]
	}`)

	cases := ParseCases(data)
	if len(cases) != 2 {
		t.Fatalf("got %d cases, want 2", len(cases))
	}
	byName := map[string]Case{}
	for _, c := range cases {
		byName[c.Name] = c
	}
	if kws := byName["Valve Replacement"].Keywords; len(kws) != 1 || kws[0] != "cardiac" {
		t.Errorf("category not injected as lowered keyword: %v", kws)
	}
	if kws := byName["Splenectomy"].Keywords; len(kws) != 2 || kws[1] != "trauma" {
		t.Errorf("category should append to existing keywords: %v", kws)
	}
}

func TestParseCasesMalformed(t *testing.T) {
	if cases := ParseCases([]byte(`{"procedures": "nope"`)); cases != nil {
		t.Errorf("malformed payload should yield empty catalog, got %+v", cases)
	}
}

func TestParsePatientsShapes(t *testing.T) {
	flat := ParsePatients([]byte(`[{"name": "elder", "comorbidities": ["hypertension"]}]`))
	if len(flat) != 1 || flat[0].Name != "elder" {
		t.Fatalf("flat shape: %+v", flat)
	}

	wrapped := ParsePatients([]byte(`{"patients": [{"name": "child", "categories": ["pediatric"]}]}`))
	if len(wrapped) != 1 || !wrapped[0].HasCategory("pediatric") {
		t.Fatalf("wrapper shape: %+v", wrapped)
	}

	grouped := ParsePatients([]byte(`{"Cardiac": [{"name": "post-MI", "comorbidities": ["prior infarction"]}]}`))
	if len(grouped) != 1 || !grouped[0].HasCategory("cardiac") {
		t.Fatalf("grouped shape should inject category tag: %+v", grouped)
	}
}

func TestParsePatientsDropsEmptyArchetypes(t *testing.T) {
	got := ParsePatients([]byte(`[{"name": "blank"}, {"name": "ok", "categories": ["trauma"]}]`))
	if len(got) != 1 || got[0].Name != "ok" {
		t.Fatalf("archetype with no categories or comorbidities should be dropped: %+v", got)
	}
}

func TestParseStudents(t *testing.T) {
	data := []byte(`[
		{"id": "s-1", "name": "Ann", "class_standing": 2},
		{"id": "", "name": "no id", "class_standing": 1},
		{"id": "s-2", "name": "out of range", "class_standing": 5}
	]`)

	students := ParseStudents(data)
	if len(students) != 1 || students[0].ID != "s-1" {
		t.Fatalf("got %+v, want only the valid student", students)
	}

	if got := ParseStudents([]byte(`not json`)); got != nil {
		t.Errorf("malformed roster should yield empty roster, got %+v", got)
	}
}

func TestHasCategoryFolds(t *testing.T) {
	p := PatientArchetype{Categories: []string{"Pediatric"}}
	if !p.HasCategory("pediatric") {
		t.Error("category comparison should be case-insensitive")
	}
	if p.HasCategory("cardiac") {
		t.Error("undeclared category reported as present")
	}
}
