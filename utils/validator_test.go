package utils

import "testing"

func TestValidateEmail(t *testing.T) {
	valid := []string{"doctor@emgurus.com", "first.last+tag@hospital.co.uk"}
	for _, email := range valid {
		if !ValidateEmail(email) {
			t.Errorf("expected %q to be valid", email)
		}
	}

	invalid := []string{"", "no-at-sign", "a@b", "a@b.", "@x.com"}
	for _, email := range invalid {
		if ValidateEmail(email) {
			t.Errorf("expected %q to be invalid", email)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if ok, msg := ValidatePassword("short"); ok || msg == "" {
		t.Error("short passwords must be rejected with a message")
	}
	if ok, _ := ValidatePassword("longenough"); !ok {
		t.Error("8+ character passwords should pass")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := SanitizeInput("  hello\x00world  "); got != "helloworld" {
		t.Errorf("unexpected sanitized value %q", got)
	}
}
