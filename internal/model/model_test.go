package model

import (
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestValidation_EffectivePassed(t *testing.T) {
	tests := []struct {
		name     string
		passed   bool
		override *bool
		want     bool
	}{
		{name: "no override passed", passed: true, want: true},
		{name: "no override failed", passed: false, want: false},
		{name: "override to pass", passed: false, override: boolPtr(true), want: true},
		{name: "override to fail", passed: true, override: boolPtr(false), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Validation{Passed: tt.passed, Details: ValidationDetails{OverridePassed: tt.override}}
			if got := v.EffectivePassed(); got != tt.want {
				t.Errorf("EffectivePassed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRawChunks_ValueNullWhenEmpty(t *testing.T) {
	v, err := RawChunks{}.Value()
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Errorf("Value() = %v, want nil", v)
	}

	v, err = RawChunks{StreamChunks: []TimelineEntry{{Order: 1, Avatar: "guide"}}}.Value()
	if err != nil {
		t.Fatal(err)
	}
	if v == nil {
		t.Fatal("Value() = nil, want JSON")
	}
}

func TestRawChunks_ScanAcceptsStringAndBytes(t *testing.T) {
	raw := `{"last_chunk":{"avatar":"coach","text":"hi"},"stream_chunks":[{"order":1,"avatar":"coach"}]}`
	for _, src := range []any{raw, []byte(raw)} {
		var r RawChunks
		if err := r.Scan(src); err != nil {
			t.Fatalf("Scan(%T) error = %v", src, err)
		}
		if r.LastChunk["avatar"] != "coach" {
			t.Errorf("LastChunk = %v", r.LastChunk)
		}
		if len(r.StreamChunks) != 1 || r.StreamChunks[0].Avatar != "coach" {
			t.Errorf("StreamChunks = %v", r.StreamChunks)
		}
	}
}

func TestRunConfig_CriterionKeysNilVersusEmpty(t *testing.T) {
	var nilKeys RunConfig
	if err := nilKeys.Scan(`{"criterion_keys":null}`); err != nil {
		t.Fatal(err)
	}
	if nilKeys.CriterionKeys != nil {
		t.Errorf("null keys decoded as %v", nilKeys.CriterionKeys)
	}

	var emptyKeys RunConfig
	if err := emptyKeys.Scan(`{"criterion_keys":[]}`); err != nil {
		t.Fatal(err)
	}
	if emptyKeys.CriterionKeys == nil || len(emptyKeys.CriterionKeys) != 0 {
		t.Errorf("empty keys decoded as %#v", emptyKeys.CriterionKeys)
	}
}

func TestMessageResponse_ResponsePayload(t *testing.T) {
	text := "final"
	withChunk := &MessageResponse{ResponseText: &text, RawChunks: RawChunks{LastChunk: map[string]any{"text": "x"}}}
	if _, ok := withChunk.ResponsePayload().(map[string]any); !ok {
		t.Errorf("payload should prefer last chunk, got %T", withChunk.ResponsePayload())
	}

	textOnly := &MessageResponse{ResponseText: &text}
	if got := textOnly.ResponsePayload(); got != "final" {
		t.Errorf("payload = %v, want final", got)
	}

	failed := &MessageResponse{}
	if got := failed.ResponsePayload(); got != "" {
		t.Errorf("payload = %v, want empty string", got)
	}
}
