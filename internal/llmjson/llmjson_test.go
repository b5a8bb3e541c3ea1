package llmjson

import "testing"

func TestStripFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `[1]`, want: `[1]`},
		{in: "```json\n[1]\n```", want: `[1]`},
		{in: "```\n{\"a\":1}\n```  ", want: `{"a":1}`},
		{in: "  plain  ", want: "plain"},
	}
	for _, tt := range tests {
		if got := StripFence(tt.in); got != tt.want {
			t.Errorf("StripFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "strict", in: `[{"a": 1}]`},
		{name: "fenced", in: "```json\n{\"a\": 1}\n```"},
		{name: "trailing comma", in: `[{"a": 1},]`},
		{name: "single quotes", in: `{'a': 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestObjects(t *testing.T) {
	objs, ok := Objects([]any{map[string]any{"a": 1.0}, "x"})
	if !ok || len(objs) != 2 || objs[0]["a"] != 1.0 || objs[1] != nil {
		t.Errorf("Objects(array) = %v, %v", objs, ok)
	}
	objs, ok = Objects(map[string]any{"b": true})
	if !ok || len(objs) != 1 {
		t.Errorf("Objects(object) = %v, %v", objs, ok)
	}
	if _, ok := Objects(42.0); ok {
		t.Error("scalar should not convert")
	}
}
