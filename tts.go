package main

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
)

const (
	MsgTTSSynthesisFail = "TTS synthesis failed: %v"
	MsgTTSAnnouncing    = "Announcing: %q"
)

// Announce synthesizes speech for text and plays it over the current track,
// pausing and restoring playback around it. No-op when speech is disabled.
func (s *SpeechService) Announce(ctx context.Context, session *PlayerSession, text string) error {
	if len([]rune(text)) > 500 {
		text = string([]rune(text)[:500])
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Voice:          openai.AudioSpeechNewParamsVoiceAlloy,
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatOpus,
	})
	if err != nil {
		LogSpeech(MsgTTSSynthesisFail, err)
		return fmt.Errorf("%w: %v", ErrStreamUnavailable, err)
	}
	defer resp.Body.Close()

	LogSpeech(MsgTTSAnnouncing, text)
	return session.Announce(ctx, resp.Body)
}
