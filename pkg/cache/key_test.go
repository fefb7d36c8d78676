package cache

import "testing"

func TestGenerationName(t *testing.T) {
	tests := []struct {
		purpose Purpose
		version string
		want    string
	}{
		{PurposeStatic, "v1", "static-v1"},
		{PurposeDynamic, "v1", "dynamic-v1"},
		{PurposeAPI, "v12", "api-v12"},
	}

	for _, tt := range tests {
		if got := GenerationName(tt.purpose, tt.version); got != tt.want {
			t.Errorf("GenerationName(%q, %q) = %q, want %q", tt.purpose, tt.version, got, tt.want)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain path",
			input: "https://example.com/css/site.css",
			want:  "https://example.com/css/site.css",
		},
		{
			name:  "fragment dropped",
			input: "https://example.com/index.html#about",
			want:  "https://example.com/index.html",
		},
		{
			name:  "query preserved",
			input: "https://api.example.com/quote?lang=en",
			want:  "https://api.example.com/quote?lang=en",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeKey(tt.input)
			if err != nil {
				t.Fatalf("NormalizeKey(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeKey_Invalid(t *testing.T) {
	if _, err := NormalizeKey("://not-a-url"); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestStorageKeyRoundTrip(t *testing.T) {
	key := storageKey("static-v2", "https://example.com/index.html")
	if want := "site:static-v2:https://example.com/index.html"; key != want {
		t.Errorf("storageKey = %q, want %q", key, want)
	}

	// URLs contain colons; the generation must still parse back out.
	if got := generationFromKey(key); got != "static-v2" {
		t.Errorf("generationFromKey(%q) = %q, want static-v2", key, got)
	}
}

func TestGenerationFromKey_Foreign(t *testing.T) {
	tests := []string{
		"other:static-v1:https://example.com/",
		"site:orphan",
		"",
	}
	for _, key := range tests {
		if got := generationFromKey(key); got != "" {
			t.Errorf("generationFromKey(%q) = %q, want empty", key, got)
		}
	}
}
