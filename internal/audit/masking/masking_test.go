package masking

import "testing"

func TestSnapshotMasksCredentialKeys(t *testing.T) {
	original := map[string]any{
		"username":      "jana",
		"password":      "clear",
		"Password_Hash": "argon2id$...",
		"api_key":       "key",
		"smtp_password": "mail",
		"client_secret": "oauth",
		"notes":         "visible",
	}

	masked := Snapshot(original)

	for _, key := range []string{"password", "Password_Hash", "api_key", "smtp_password", "client_secret"} {
		if masked[key] != Masked {
			t.Fatalf("expected %s masked, got %v", key, masked[key])
		}
	}
	if masked["username"] != "jana" || masked["notes"] != "visible" {
		t.Fatalf("expected non-sensitive values preserved, got %v", masked)
	}

	// The input map stays untouched.
	if original["password"] != "clear" {
		t.Fatalf("input map was mutated")
	}
}

func TestSnapshotNil(t *testing.T) {
	if Snapshot(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}
