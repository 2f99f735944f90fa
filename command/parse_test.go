package command

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		prefix   string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{"plain command", "!ping", "!", "ping", nil, true},
		{"command with args", "!give alice 10", "!", "give", []string{"alice", "10"}, true},
		{"uppercase folded", "!PING", "!", "ping", nil, true},
		{"args keep case", "!echo Hello World", "!", "echo", []string{"Hello", "World"}, true},
		{"no prefix", "hello there", "!", "", nil, false},
		{"prefix mid-message", "say !ping", "!", "", nil, false},
		{"prefix alone", "!", "!", "", nil, false},
		{"prefix then spaces", "!   ", "!", "", nil, false},
		{"empty message", "", "!", "", nil, false},
		{"multi-space collapse", "!give   alice    10", "!", "give", []string{"alice", "10"}, true},
		{"tab separators", "!give\talice\t10", "!", "give", []string{"alice", "10"}, true},
		{"different prefix", "?ping", "?", "ping", nil, true},
		{"multi-char prefix", "$$top", "$$", "top", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, ok := Parse(tt.raw, tt.prefix)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q, %q) ok = %v, want %v", tt.raw, tt.prefix, ok, tt.wantOK)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if len(args) != len(tt.wantArgs) || (len(tt.wantArgs) > 0 && !reflect.DeepEqual(args, tt.wantArgs)) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestExtractQuoted(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"three segments", `!sondage "Best game?" "Zelda" "Mario"`, []string{"Best game?", "Zelda", "Mario"}},
		{"no quotes", "!sondage question", nil},
		{"single segment", `"only one"`, []string{"only one"}},
		{"unterminated quote dropped", `"done" "half`, []string{"done"}},
		{"empty segment kept", `"" "b"`, []string{"", "b"}},
		{"adjacent segments", `"a""b"`, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractQuoted(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractQuoted(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	viewer := &Invocation{Username: "viewer"}
	mod := &Invocation{Username: "mod", IsModerator: true}
	owner := &Invocation{Username: "owner", IsOwner: true}

	tests := []struct {
		name     string
		inv      *Invocation
		required Permission
		want     bool
	}{
		{"everyone allows viewer", viewer, PermEveryone, true},
		{"everyone allows mod", mod, PermEveryone, true},
		{"moderator blocks viewer", viewer, PermModerator, false},
		{"moderator allows mod", mod, PermModerator, true},
		{"moderator allows owner", owner, PermModerator, true},
		{"owner blocks viewer", viewer, PermOwner, false},
		{"owner blocks mod", mod, PermOwner, false},
		{"owner allows owner", owner, PermOwner, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.inv, tt.required); got != tt.want {
				t.Errorf("Authorize(%s, %s) = %v, want %v", tt.inv.Username, tt.required, got, tt.want)
			}
		})
	}
}
