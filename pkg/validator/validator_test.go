package validator

import (
	"testing"
)

type reportPayload struct {
	Title       string   `json:"title" validate:"required"`
	Category    string   `json:"category" validate:"required,oneof=accident fire flood crime pollution earthquake cyclone other"`
	Severity    string   `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Description string   `json:"description" validate:"required"`
}

func TestValidateStructSuccess(t *testing.T) {
	lat, lng := 6.93, 79.85
	payload := reportPayload{
		Title:       "Flooded underpass",
		Category:    "flood",
		Severity:    "high",
		Latitude:    &lat,
		Longitude:   &lng,
		Description: "Road impassable near the station",
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	lat := 212.0
	payload := reportPayload{
		Category: "volcano",
		Latitude: &lat,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation errors")
	}

	failures, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	fields := make(map[string]bool, len(failures))
	for _, failure := range failures {
		fields[failure.Field] = true
	}

	for _, want := range []string{"title", "category", "latitude", "description"} {
		if !fields[want] {
			t.Fatalf("expected failure for field %q, got %v", want, failures)
		}
	}
}

func TestValidationErrorsString(t *testing.T) {
	errs := ValidationErrors{
		{Field: "title", Tag: "required"},
		{Field: "latitude", Tag: "lte", Param: "90"},
	}

	got := errs.Error()
	want := "title failed on required; latitude failed on lte=90"
	if got != want {
		t.Fatalf("unexpected error string: %s", got)
	}
}
