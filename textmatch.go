package main

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ===========================
// Spoken Command Matching
// ===========================

// Transcribed speech is messy: filler words, punctuation, and the odd
// mangled word. Matching normalizes the text, strips politeness filler,
// then compares the leading words against known command aliases with a
// small typo tolerance before conceding to the LLM classifier.

const (
	ActionPlay    = "play"
	ActionPause   = "pause"
	ActionResume  = "resume"
	ActionSkip    = "skip"
	ActionStop    = "stop"
	ActionShuffle = "shuffle"
	ActionClear   = "clear"
	ActionQueue   = "queue"
	ActionReplay  = "replay"
	ActionUnknown = "unknown"
)

// SpokenIntent is the interpreted meaning of a voice message.
type SpokenIntent struct {
	Action string
	Query  string
}

var (
	speechPunctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	speechWhitespaceRegex = regexp.MustCompile(`\s+`)

	// Leading filler that speech tends to prepend to the actual command.
	fillerWords = map[string]bool{
		"hey": true, "ok": true, "okay": true, "please": true, "can": true,
		"could": true, "would": true, "you": true, "um": true, "uh": true,
		"now": true, "just": true, "bot": true,
	}

	// Aliases that take no argument. Multi-word aliases are matched against
	// the whole remaining phrase.
	phraseAliases = map[string]string{
		"pause":             ActionPause,
		"hold on":           ActionPause,
		"wait":              ActionPause,
		"resume":            ActionResume,
		"unpause":           ActionResume,
		"continue":          ActionResume,
		"keep going":        ActionResume,
		"skip":              ActionSkip,
		"next":              ActionSkip,
		"next song":         ActionSkip,
		"next track":        ActionSkip,
		"skip this":         ActionSkip,
		"stop":              ActionStop,
		"stop playing":      ActionStop,
		"shut up":           ActionStop,
		"shuffle":           ActionShuffle,
		"shuffle the queue": ActionShuffle,
		"mix it up":         ActionShuffle,
		"clear":             ActionClear,
		"clear the queue":   ActionClear,
		"queue":             ActionQueue,
		"whats playing":     ActionQueue,
		"what is playing":   ActionQueue,
		"show the queue":    ActionQueue,
		"replay":            ActionReplay,
		"play it again":     ActionReplay,
		"again":             ActionReplay,
		"one more time":     ActionReplay,
	}

	// Verbs that introduce a query argument.
	playVerbs = []string{"play", "queue up", "put on", "add", "listen to"}
)

// NormalizeSpeech lowercases, strips diacritics and punctuation, and
// collapses whitespace.
func NormalizeSpeech(text string) string {
	text = norm.NFKD.String(text)

	var b strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	text = b.String()

	text = speechPunctRegex.ReplaceAllString(text, "")
	text = speechWhitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(strings.ToLower(text))
}

func stripFiller(words []string) []string {
	for len(words) > 0 && fillerWords[words[0]] {
		words = words[1:]
	}
	return words
}

// MatchSpokenCommand interprets a transcript as a player command. Unknown
// returns an intent with ActionUnknown so the caller can escalate.
func MatchSpokenCommand(text string) SpokenIntent {
	normalized := NormalizeSpeech(text)
	words := stripFiller(strings.Fields(normalized))
	if len(words) == 0 {
		return SpokenIntent{Action: ActionUnknown}
	}
	phrase := strings.Join(words, " ")

	// Play verbs first so "play next to me" doesn't match "next".
	for _, verb := range playVerbs {
		vw := strings.Fields(verb)
		if len(words) > len(vw) && wordsMatch(words[:len(vw)], vw) {
			return SpokenIntent{Action: ActionPlay, Query: strings.Join(words[len(vw):], " ")}
		}
	}

	if action, ok := phraseAliases[phrase]; ok {
		return SpokenIntent{Action: action}
	}

	// Typo tolerance for short commands: "paws" for "pause", "skpi" for
	// "skip". Only single-word phrases get fuzzy treatment to avoid
	// mismatching full sentences.
	if len(words) == 1 {
		best, bestScore := ActionUnknown, 0.0
		for alias, action := range phraseAliases {
			if strings.Contains(alias, " ") {
				continue
			}
			if score := Similarity(phrase, alias); score > bestScore {
				best, bestScore = action, score
			}
		}
		if bestScore >= 0.75 {
			return SpokenIntent{Action: best}
		}
	}

	return SpokenIntent{Action: ActionUnknown, Query: phrase}
}

func wordsMatch(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if Similarity(a[i], b[i]) < 0.75 {
			return false
		}
	}
	return true
}

// Similarity scores two strings in [0,1] by longest common subsequence.
func Similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}
	return float64(longestCommonSubsequence(s1, s2)) / float64(Max(len(s1), len(s2)))
}

func longestCommonSubsequence(s1, s2 string) int {
	m, n := len(s1), len(s2)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if s1[i-1] == s2[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = Max(dp[i-1][j], dp[i][j-1])
			}
		}
	}
	return dp[m][n]
}
