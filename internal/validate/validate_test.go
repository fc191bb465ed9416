package validate

import (
	"errors"
	"testing"
)

func TestErrorsCollectsFields(t *testing.T) {
	var v Errors
	v.Required("name", "  ")
	v.Email("email", "not-an-email")
	v.URL("website", "ftp://example.org")
	v.Required("phone", "9876543210")

	err := v.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid match, got %v", err)
	}

	var verr *Errors
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Errors, got %T", err)
	}
	want := []string{"name", "email", "website"}
	if len(verr.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %+v", len(want), verr.Fields)
	}
	for i, field := range want {
		if verr.Fields[i].Field != field {
			t.Fatalf("field %d: expected %s, got %s", i, field, verr.Fields[i].Field)
		}
	}
}

func TestErrorsEmptyIsNil(t *testing.T) {
	var v Errors
	v.Required("name", "Asha")
	v.Email("email", "asha@example.org")
	v.URL("website", "")
	if err := v.Err(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsEmail(t *testing.T) {
	good := []string{"a@b.co", "first.last@hospital.example.org"}
	bad := []string{"", "plain", "a@b", "Name <a@b.co>", "a@@b.co"}
	for _, v := range good {
		if !IsEmail(v) {
			t.Fatalf("%q should be valid", v)
		}
	}
	for _, v := range bad {
		if IsEmail(v) {
			t.Fatalf("%q should be invalid", v)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Asha@Example.ORG "); got != "asha@example.org" {
		t.Fatalf("unexpected %q", got)
	}
}
