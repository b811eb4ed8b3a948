package main

import "testing"

func TestNormalizeSpeech(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PAUSE.", "pause"},
		{"What's Playing?", "whats playing"},
		{"  Multiple   spaces\there ", "multiple spaces here"},
		{"Café déjà vu", "cafe deja vu"},
		{"play Never Gonna Give You Up!", "play never gonna give you up"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := NormalizeSpeech(tt.in); got != tt.want {
			t.Errorf("NormalizeSpeech(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchSpokenCommand(t *testing.T) {
	tests := []struct {
		in         string
		wantAction string
		wantQuery  string
	}{
		// Direct aliases
		{"pause", ActionPause, ""},
		{"hold on", ActionPause, ""},
		{"resume", ActionResume, ""},
		{"keep going", ActionResume, ""},
		{"skip", ActionSkip, ""},
		{"next song", ActionSkip, ""},
		{"stop playing", ActionStop, ""},
		{"shut up", ActionStop, ""},
		{"shuffle the queue", ActionShuffle, ""},
		{"mix it up", ActionShuffle, ""},
		{"clear the queue", ActionClear, ""},
		{"whats playing", ActionQueue, ""},
		{"what's playing", ActionQueue, ""},
		{"play it again", ActionReplay, ""},
		{"one more time", ActionReplay, ""},

		// Filler stripping
		{"hey bot please pause", ActionPause, ""},
		{"ok can you skip", ActionSkip, ""},
		{"um uh stop", ActionStop, ""},

		// Play with query
		{"play never gonna give you up", ActionPlay, "never gonna give you up"},
		{"hey bot play some jazz", ActionPlay, "some jazz"},
		{"queue up some jazz", ActionPlay, "some jazz"},
		{"put on lofi beats", ActionPlay, "lofi beats"},
		{"listen to the beatles", ActionPlay, "the beatles"},
		{"add bohemian rhapsody", ActionPlay, "bohemian rhapsody"},

		// Play verbs win over embedded aliases
		{"play next to me", ActionPlay, "next to me"},

		// Typo tolerance for single words
		{"skpi", ActionSkip, ""},
		{"pausee", ActionPause, ""},

		// Unknown keeps the phrase for the LLM fallback
		{"turn the volume down a bit", ActionUnknown, "turn the volume down a bit"},
		{"", ActionUnknown, ""},
		{"hey bot", ActionUnknown, ""},
	}

	for _, tt := range tests {
		got := MatchSpokenCommand(tt.in)
		if got.Action != tt.wantAction || got.Query != tt.wantQuery {
			t.Errorf("MatchSpokenCommand(%q) = %+v, want {%s %q}", tt.in, got, tt.wantAction, tt.wantQuery)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"pause", "pause", 1.0, 1.0},
		{"", "pause", 0.0, 0.0},
		{"pause", "", 0.0, 0.0},
		{"skip", "skpi", 0.75, 0.75},
		{"kitten", "sitting", 0.5, 0.6},
		{"abc", "xyz", 0.0, 0.0},
	}
	for _, tt := range tests {
		got := Similarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("Similarity(%q, %q) = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}

	// Symmetric
	if Similarity("pause", "paws") != Similarity("paws", "pause") {
		t.Error("similarity not symmetric")
	}
}
