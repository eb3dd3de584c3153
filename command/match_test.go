package command

import "testing"

func TestMatchPrefixNames(t *testing.T) {
	names := []string{"hi", "hime", "boomer"}

	tests := []struct {
		content string
		want    string
		ok      bool
	}{
		{"hime", "hime", true},
		{"hime there", "hime", true},
		{"hi there", "hi", true},
		{"himes", "", false},
		{"boomer", "boomer", true},
		{"bo", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := MatchPrefixNames(tt.content, names)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MatchPrefixNames(%q) = %q/%v, want %q/%v", tt.content, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStripName(t *testing.T) {
	if got := stripName("hime   there", "hime"); got != "there" {
		t.Errorf("stripName = %q, want there", got)
	}
	if got := stripName("hime", "hime"); got != "" {
		t.Errorf("stripName = %q, want empty", got)
	}
}
