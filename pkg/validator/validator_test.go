package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type testPayload struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Age      int    `json:"age" validate:"gte=18"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := testPayload{
		Username: "alice",
		Email:    "alice@example.com",
		Age:      20,
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	payload := testPayload{
		Username: "",
		Email:    "invalid",
		Age:      10,
	}

	err := ValidateStruct(payload)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}

	foundEmail := false
	for _, v := range vErrs {
		if v.Field == "email" {
			foundEmail = true
		}
	}

	if !foundEmail {
		t.Fatal("expected email field to be present in validation errors")
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("cmsauthz", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "cmsauthz"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"cmsauthz"`
	}

	if err := ValidateStruct(custom{Value: "cmsauthz"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}

func TestPermissionNameRule(t *testing.T) {
	type body struct {
		Permissions []string `json:"permissions" validate:"required,dive,permission_name"`
		Role        string   `json:"role" validate:"omitempty,role_name"`
	}

	if err := ValidateStruct(body{Permissions: []string{"content.read", "workflow.publish_now"}, Role: "editor"}); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	for _, name := range []string{"content", "Content.Read", "content.", ".read", "content read"} {
		if err := ValidateStruct(body{Permissions: []string{name}}); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}

	if err := ValidateStruct(body{Permissions: []string{"content.read"}, Role: "Bad Role"}); err == nil {
		t.Fatal("expected role_name to reject whitespace and uppercase")
	}
}
