package llm

import (
	"testing"
)

func TestDecodeLLMJSONCodeFence(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON("```json\n{\"ok\":true}\n```", &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if !parsed.OK {
		t.Fatal("expected ok=true")
	}
}

func TestDecodeLLMJSONProseAroundObject(t *testing.T) {
	var parsed map[string]any
	content := "Here is the storyboard: {\"clips\": [{\"prompt\": \"a } brace\"}]} hope it helps {\"extra\":1}"
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if _, ok := parsed["clips"]; !ok {
		t.Fatalf("expected clips key, got %#v", parsed)
	}
}

func TestDecodeLLMJSONEmpty(t *testing.T) {
	var parsed map[string]any
	if err := DecodeLLMJSON("   ", &parsed); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"prefix and suffix", `xx {"a":{"b":2}} yy`, `{"a":{"b":2}}`, true},
		{"escaped quote", `{"a":"say \"}\" now"}`, `{"a":"say \"}\" now"}`, true},
		{"truncated", `{"a":[1,2`, "", false},
		{"none", `no json here`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("ExtractJSONObject(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractJSONObjectsSalvagesTruncatedArray(t *testing.T) {
	content := `{"clips": [{"start": 0, "luma_prompt": "wide {shot}"}, {"start": 2}, {"start": 4, "luma_pro`
	got := ExtractJSONObjects(content, "clips")
	if len(got) != 2 {
		t.Fatalf("expected 2 salvaged objects, got %d: %v", len(got), got)
	}
	if got[1] != `{"start": 2}` {
		t.Fatalf("unexpected second object %q", got[1])
	}
}

func TestSanitizeJSONReturnsTruncatedTail(t *testing.T) {
	if got := SanitizeJSON("prefix {\"clips\": [1,"); got != "{\"clips\": [1," {
		t.Fatalf("SanitizeJSON = %q", got)
	}
}
