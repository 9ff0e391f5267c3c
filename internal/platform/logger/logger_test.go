package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVs(t *testing.T) {
	redactionOn()
	prevEnabled, prevSalt := redactionEnabled, hashSalt
	redactionEnabled, hashSalt = true, ""
	t.Cleanup(func() { redactionEnabled, hashSalt = prevEnabled, prevSalt })

	out := sanitizeKVs([]interface{}{
		"student_id", "s-42",
		"federation_secret", "hunter2",
		"hub_id", "village-1",
		"dangling",
	})
	if len(out) != 7 {
		t.Fatalf("len: got=%d want=7", len(out))
	}
	if got, _ := out[1].(string); !strings.HasPrefix(got, "hash:") || len(got) != len("hash:")+12 {
		t.Fatalf("student id not hashed: %v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("secret not redacted: %v", out[3])
	}
	if out[5] != "village-1" {
		t.Fatalf("hub id changed: %v", out[5])
	}
	if out[6] != "dangling" {
		t.Fatalf("odd trailing key dropped: %v", out[6])
	}
}

func TestHashValueIsStable(t *testing.T) {
	if hashValue("s-1") != hashValue("s-1") {
		t.Fatal("hash not deterministic")
	}
	if hashValue("s-1") == hashValue("s-2") {
		t.Fatal("distinct ids collide")
	}
	if hashValue("") != "" {
		t.Fatal("empty value should stay empty")
	}
}
