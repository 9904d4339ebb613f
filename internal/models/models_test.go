package models

import "testing"

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"team", func() *BaseModel {
			m := &Team{}
			return &m.BaseModel
		}},
		{"permission", func() *BaseModel {
			p := &Permission{}
			return &p.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			if err := model.BeforeCreate(nil); err != nil {
				t.Fatalf("before create: %v", err)
			}
			if model.ID == "" {
				t.Fatal("expected ID to be generated")
			}
		})
	}
}

func TestUserBeforeCreateNormalisesEmail(t *testing.T) {
	user := &User{Email: "  Editor@Example.COM "}
	if err := user.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected user ID to be generated")
	}
	if user.Email != "editor@example.com" {
		t.Fatalf("expected normalised email, got %q", user.Email)
	}
}

func TestActivityLogBeforeCreateKeepsExplicitID(t *testing.T) {
	entry := &ActivityLog{ID: "fixed"}
	if err := entry.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if entry.ID != "fixed" {
		t.Fatalf("expected explicit ID to be kept, got %q", entry.ID)
	}
}
