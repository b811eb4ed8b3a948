package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ============================================================================
// Configuration
// ============================================================================

const (
	MsgConfigMissingToken   = "DISCORD_TOKEN is not set in .env file"
	MsgConfigInvalidGuildID = "invalid GUILD_ID: must be a valid Snowflake"

	// Environment Variables
	EnvDiscordToken    = "DISCORD_TOKEN"
	EnvSilent          = "SILENT"
	EnvGuildID         = "GUILD_ID"
	EnvOwnerIDs        = "OWNER_IDS"
	EnvAudioCacheMax   = "AUDIO_CACHE_MAX_FILES"
	EnvHistoryMax      = "HISTORY_MAX_TRACKS"
	EnvSpeechAPIKey    = "SPEECH_API_KEY"
	EnvSpeechBaseURL   = "SPEECH_BASE_URL"
	EnvSpeechModel     = "SPEECH_MODEL"
	EnvIntentModel     = "INTENT_MODEL"
	EnvVoiceCommands   = "VOICE_COMMANDS"
	EnvYoutubePrefix   = "YOUTUBE_PREFIX"
	EnvYTMusicPrefix   = "YTMUSIC_PREFIX"
	EnvSearchCacheSize = "SEARCH_CACHE_SIZE"
)

type Config struct {
	Token        string
	GuildID      string
	DatabasePath string
	OwnerIDs     []string
	Silent       bool

	// Audio cache
	AudioCacheMaxFiles int

	// Play history
	HistoryMaxTracks int

	// Speech (Whisper transcription + intent classification, OpenAI-compatible)
	SpeechAPIKey  string
	SpeechBaseURL string
	SpeechModel   string
	IntentModel   string
	VoiceCommands bool

	// Search prefixes
	YoutubePrefix string
	YTMusicPrefix string

	// Resolver query cache
	SearchCacheSize int
}

var GlobalConfig *Config

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	token := os.Getenv(EnvDiscordToken)
	dbPath := filepath.Join(".", GetProjectName()+".db")

	silent, _ := strconv.ParseBool(os.Getenv(EnvSilent))

	ownerIDsStr := os.Getenv(EnvOwnerIDs)
	var ownerIDs []string
	if ownerIDsStr != "" {
		ownerIDs = strings.Split(ownerIDsStr, ",")
		for i := range ownerIDs {
			ownerIDs[i] = strings.TrimSpace(ownerIDs[i])
		}
	}

	cfg := &Config{
		Token:         token,
		GuildID:       os.Getenv(EnvGuildID),
		DatabasePath:  dbPath,
		OwnerIDs:      ownerIDs,
		Silent:        silent,
		SpeechAPIKey:  os.Getenv(EnvSpeechAPIKey),
		SpeechBaseURL: os.Getenv(EnvSpeechBaseURL),
		SpeechModel:   os.Getenv(EnvSpeechModel),
		IntentModel:   os.Getenv(EnvIntentModel),
		YoutubePrefix: os.Getenv(EnvYoutubePrefix),
		YTMusicPrefix: os.Getenv(EnvYTMusicPrefix),
	}

	cfg.VoiceCommands, _ = strconv.ParseBool(os.Getenv(EnvVoiceCommands))

	cfg.AudioCacheMaxFiles, _ = strconv.Atoi(os.Getenv(EnvAudioCacheMax))
	if cfg.AudioCacheMaxFiles == 0 {
		cfg.AudioCacheMaxFiles = 50
	}
	cfg.HistoryMaxTracks, _ = strconv.Atoi(os.Getenv(EnvHistoryMax))
	if cfg.HistoryMaxTracks == 0 {
		cfg.HistoryMaxTracks = 500
	}
	cfg.SearchCacheSize, _ = strconv.Atoi(os.Getenv(EnvSearchCacheSize))
	if cfg.SearchCacheSize == 0 {
		cfg.SearchCacheSize = 256
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = "whisper-1"
	}
	if cfg.IntentModel == "" {
		cfg.IntentModel = "gpt-4o-mini"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf(MsgConfigInvalidGuildID)
	}
	return nil
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "bot"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}
