package crypto

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestGeneratePassword_AlwaysSatisfiesPolicy(t *testing.T) {
	for i := 0; i < 200; i++ {
		pw, err := GeneratePassword()
		if err != nil {
			t.Fatalf("GeneratePassword: %v", err)
		}
		if len(pw) != GeneratedPasswordLength {
			t.Fatalf("expected %d chars, got %d", GeneratedPasswordLength, len(pw))
		}
		if err := ValidatePassword(pw); err != nil {
			t.Fatalf("generated password fails policy: %v", err)
		}
	}
}

func TestGeneratePassword_Unique(t *testing.T) {
	a, _ := GeneratePassword()
	b, _ := GeneratePassword()
	if a == b {
		t.Fatal("expected distinct passwords")
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		wantErr  string
	}{
		{"Aa1!Aa1!Aa1!Aa1!Aa1!", ""},
		{"short1!A", "at least 20 characters"},
		{"aaaaaaaaaaaaaaaaaa1!", "uppercase"},
		{"AAAAAAAAAAAAAAAAAA1!", "lowercase"},
		{"AaAaAaAaAaAaAaAaAa!!", "digit"},
		{"AaAaAaAaAaAaAaAaAa11", "symbol"},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.password)
		if tc.wantErr == "" {
			if err != nil {
				t.Fatalf("ValidatePassword(%q): unexpected error %v", tc.password, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("ValidatePassword(%q): got %v, want error containing %q", tc.password, err, tc.wantErr)
		}
	}
}

func TestSensitive_NeverPrintsValue(t *testing.T) {
	s := NewSensitive("super-secret-value-123")

	for _, rendered := range []string{
		fmt.Sprint(s),
		fmt.Sprintf("%v", s),
		fmt.Sprintf("%+v", s),
		fmt.Sprintf("%#v", s),
		fmt.Sprintf("%s", s),
	} {
		if strings.Contains(rendered, "super-secret") {
			t.Fatalf("secret leaked through formatting: %q", rendered)
		}
	}

	data, err := json.Marshal(struct {
		Password Sensitive `json:"password"`
	}{Password: s})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "super-secret") {
		t.Fatalf("secret leaked through JSON: %s", data)
	}

	if s.Reveal() != "super-secret-value-123" {
		t.Fatal("Reveal did not return the wrapped value")
	}
}

func TestSensitive_IsZero(t *testing.T) {
	if !(Sensitive{}).IsZero() {
		t.Fatal("zero Sensitive should report IsZero")
	}
	if NewSensitive("x").IsZero() {
		t.Fatal("non-empty Sensitive should not report IsZero")
	}
}
