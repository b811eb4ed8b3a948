package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ===========================
// Message Constants
// ===========================

const (
	MsgSpeechDisabled       = "Speech service disabled (no API key configured)"
	MsgSpeechTranscribed    = "Transcribed voice message: %q"
	MsgSpeechTranscribeFail = "Transcription failed: %v"
	MsgSpeechIntentFail     = "Intent classification failed: %v"
	MsgSpeechIntentResolved = "Classified intent: %s %q"
)

const intentSystemPrompt = `You interpret short voice transcripts as music player commands.
Respond with ONLY a JSON object, no markdown:
{"action": "<one of: play, pause, resume, skip, stop, shuffle, clear, queue, replay, unknown>", "query": "<search query if action is play, else empty>"}
Examples:
"put something chill on" -> {"action": "play", "query": "chill music"}
"i don't like this one" -> {"action": "skip", "query": ""}
"what's next" -> {"action": "queue", "query": ""}
If the transcript is not a player command, use "unknown".`

var validActions = map[string]bool{
	ActionPlay: true, ActionPause: true, ActionResume: true, ActionSkip: true,
	ActionStop: true, ActionShuffle: true, ActionClear: true, ActionQueue: true,
	ActionReplay: true, ActionUnknown: true,
}

// ===========================
// Speech Service
// ===========================

// SpeechService wraps the speech-to-text and intent-classification API.
// When no API key is configured the service is nil and voice commands are
// silently unavailable.
type SpeechService struct {
	client      openai.Client
	speechModel string
	intentModel string
}

var (
	speechOnce    sync.Once
	speechService *SpeechService
)

func GetSpeechService() *SpeechService {
	speechOnce.Do(func() {
		if GlobalConfig == nil || GlobalConfig.SpeechAPIKey == "" {
			LogSpeech(MsgSpeechDisabled)
			return
		}
		opts := []option.RequestOption{option.WithAPIKey(GlobalConfig.SpeechAPIKey)}
		if GlobalConfig.SpeechBaseURL != "" {
			opts = append(opts, option.WithBaseURL(GlobalConfig.SpeechBaseURL))
		}
		speechService = &SpeechService{
			client:      openai.NewClient(opts...),
			speechModel: GlobalConfig.SpeechModel,
			intentModel: GlobalConfig.IntentModel,
		}
	})
	return speechService
}

// Transcribe converts an audio attachment into text.
func (s *SpeechService) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := s.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(s.speechModel),
		File:  openai.File(audio, filename, "audio/ogg"),
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", errors.New("empty transcript")
	}
	return text, nil
}

// ClassifyIntent asks the model what a transcript means when local alias
// matching couldn't make sense of it.
func (s *SpeechService) ClassifyIntent(ctx context.Context, transcript string) (SpokenIntent, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(intentSystemPrompt),
			openai.UserMessage(transcript),
		},
		Model:       s.intentModel,
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(100),
	})
	if err != nil {
		return SpokenIntent{Action: ActionUnknown}, err
	}
	if len(resp.Choices) == 0 {
		return SpokenIntent{Action: ActionUnknown}, errors.New("no response from model")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed struct {
		Action string `json:"action"`
		Query  string `json:"query"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return SpokenIntent{Action: ActionUnknown}, fmt.Errorf("unparseable intent response: %w", err)
	}
	if !validActions[parsed.Action] {
		return SpokenIntent{Action: ActionUnknown}, nil
	}
	return SpokenIntent{Action: parsed.Action, Query: strings.TrimSpace(parsed.Query)}, nil
}

// Interpret runs the cheap alias matcher first and only escalates to the
// model for transcripts it can't place.
func (s *SpeechService) Interpret(ctx context.Context, transcript string) SpokenIntent {
	intent := MatchSpokenCommand(transcript)
	if intent.Action != ActionUnknown {
		return intent
	}

	classified, err := s.ClassifyIntent(ctx, transcript)
	if err != nil {
		LogSpeech(MsgSpeechIntentFail, err)
		return SpokenIntent{Action: ActionUnknown}
	}
	LogSpeech(MsgSpeechIntentResolved, classified.Action, classified.Query)
	return classified
}
