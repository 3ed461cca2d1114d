package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/handiism/audiobatch/internal/transcode"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// AUDIOBATCH_DOWNLOAD_CONCURRENCY=5.
const EnvPrefix = "AUDIOBATCH"

// Settings holds all configuration options.
type Settings struct {
	Download DownloadSettings `mapstructure:"download"`
	Tools    ToolSettings     `mapstructure:"tools"`
	Audio    AudioSettings    `mapstructure:"audio"`
	Archive  ArchiveSettings  `mapstructure:"archive"`
	Log      LogSettings      `mapstructure:"log"`
	History  HistorySettings  `mapstructure:"history"`
	Server   ServerSettings   `mapstructure:"server"`
}

// DownloadSettings controls the worker pool and retries.
type DownloadSettings struct {
	Concurrency     int     `mapstructure:"concurrency"`
	MaxAttempts     int     `mapstructure:"max_attempts"`
	RetryCooldown   float64 `mapstructure:"retry_cooldown"` // seconds
	RetryExponent   float64 `mapstructure:"retry_exponent"`
	WorkDir         string  `mapstructure:"work_dir"`
	NativePlaylists bool    `mapstructure:"native_playlists"`
}

// ToolSettings locates the external binaries.
type ToolSettings struct {
	YtDlp        string        `mapstructure:"ytdlp"`
	FFmpeg       string        `mapstructure:"ffmpeg"`
	FFprobe      string        `mapstructure:"ffprobe"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// AudioSettings describes the produced artifacts.
type AudioSettings struct {
	Codec          string `mapstructure:"codec"`
	BitrateKbps    int    `mapstructure:"bitrate_kbps"`
	ModifyTags     bool   `mapstructure:"modify_tags"`
	EmbedArtwork   bool   `mapstructure:"embed_artwork"`
	ArtworkMaxSize int    `mapstructure:"artwork_max_size"`
}

// ArchiveSettings controls archive layout.
type ArchiveSettings struct {
	Order    string `mapstructure:"order"`    // input, title, completion
	Playlist string `mapstructure:"playlist"` // "", m3u, pls
}

// LogSettings configures logging.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// HistorySettings configures the batch history database.
type HistorySettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Addr       string        `mapstructure:"addr"`
	ArchiveTTL time.Duration `mapstructure:"archive_ttl"`
}

// Known option values.
var (
	Codecs         = transcode.Names()
	ArchiveOrders  = []string{"input", "title", "completion"}
	PlaylistTypes  = []string{"", "m3u", "pls"}
	LogLevels      = []string{"debug", "info", "warn", "error"}
	LogFormats     = []string{"console", "json"}
	defaultHistory = filepath.Join("audiobatch", "history.db")
)

// defaults lists every key with its default value.
func defaults() map[string]any {
	return map[string]any{
		"download.concurrency":      3,
		"download.max_attempts":     3,
		"download.retry_cooldown":   1.0,
		"download.retry_exponent":   1.0,
		"download.work_dir":         "",
		"download.native_playlists": false,
		"tools.ytdlp":               "yt-dlp",
		"tools.ffmpeg":              "ffmpeg",
		"tools.ffprobe":             "ffprobe",
		"tools.probe_timeout":       "60s",
		"audio.codec":               "mp3",
		"audio.bitrate_kbps":        192,
		"audio.modify_tags":         true,
		"audio.embed_artwork":       true,
		"audio.artwork_max_size":    600,
		"archive.order":             "input",
		"archive.playlist":          "",
		"log.level":                 "info",
		"log.format":                "console",
		"log.file":                  "",
		"history.enabled":           true,
		"history.path":              DefaultHistoryPath(),
		"server.addr":               ":8080",
		"server.archive_ttl":        "15m",
	}
}

// DefaultHistoryPath returns ~/.local/share/audiobatch/history.db, or the
// XDG_DATA_HOME equivalent.
func DefaultHistoryPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, defaultHistory)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), defaultHistory)
	}
	return filepath.Join(home, ".local", "share", defaultHistory)
}

// DefaultConfigPath returns ~/.config/audiobatch/config.yaml, or the
// XDG_CONFIG_HOME equivalent.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "audiobatch", "config.yaml")
}

func newViper(env bool) *viper.Viper {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	if !env {
		return v
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	s, err := decode(newViper(false))
	if err != nil {
		// defaults are static and always decode
		panic(err)
	}
	return s
}

// Load reads settings from path, layering defaults, the file and
// AUDIOBATCH_* environment variables.
//
// An empty path, or a missing file at the default location, yields defaults
// plus environment. A missing file at an explicit path is an error.
func Load(path string) (*Settings, error) {
	v := newViper(true)

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	s, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return s, nil
}

func decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &s, nil
}

// Save writes settings to path. The format follows the extension
// (yaml, json or toml).
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	v := viper.New()
	for key, value := range s.Values() {
		v.Set(key, value)
	}
	return v.WriteConfigAs(path)
}

// Values flattens the settings into dotted keys. Durations are rendered as
// strings so the result round-trips through Load.
func (s *Settings) Values() map[string]any {
	return map[string]any{
		"download.concurrency":      s.Download.Concurrency,
		"download.max_attempts":     s.Download.MaxAttempts,
		"download.retry_cooldown":   s.Download.RetryCooldown,
		"download.retry_exponent":   s.Download.RetryExponent,
		"download.work_dir":         s.Download.WorkDir,
		"download.native_playlists": s.Download.NativePlaylists,
		"tools.ytdlp":               s.Tools.YtDlp,
		"tools.ffmpeg":              s.Tools.FFmpeg,
		"tools.ffprobe":             s.Tools.FFprobe,
		"tools.probe_timeout":       s.Tools.ProbeTimeout.String(),
		"audio.codec":               s.Audio.Codec,
		"audio.bitrate_kbps":        s.Audio.BitrateKbps,
		"audio.modify_tags":         s.Audio.ModifyTags,
		"audio.embed_artwork":       s.Audio.EmbedArtwork,
		"audio.artwork_max_size":    s.Audio.ArtworkMaxSize,
		"archive.order":             s.Archive.Order,
		"archive.playlist":          s.Archive.Playlist,
		"log.level":                 s.Log.Level,
		"log.format":                s.Log.Format,
		"log.file":                  s.Log.File,
		"history.enabled":           s.History.Enabled,
		"history.path":              s.History.Path,
		"server.addr":               s.Server.Addr,
		"server.archive_ttl":        s.Server.ArchiveTTL.String(),
	}
}

// Keys returns every configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults()))
	for key := range defaults() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// RetryCooldownDuration returns the base retry pause.
func (d DownloadSettings) RetryCooldownDuration() time.Duration {
	return time.Duration(d.RetryCooldown * float64(time.Second))
}

// Validate replaces zero values with defaults and rejects unknown option
// values. Load calls it; call it again after changing settings in code.
func (s *Settings) Validate() error {
	def := DefaultSettings()

	if s.Download.Concurrency <= 0 {
		s.Download.Concurrency = def.Download.Concurrency
	}
	if s.Download.MaxAttempts <= 0 {
		s.Download.MaxAttempts = def.Download.MaxAttempts
	}
	if s.Download.RetryCooldown < 0 {
		return errors.New("download.retry_cooldown must not be negative")
	}
	if s.Download.RetryExponent <= 0 {
		s.Download.RetryExponent = def.Download.RetryExponent
	}
	if s.Audio.BitrateKbps <= 0 {
		s.Audio.BitrateKbps = def.Audio.BitrateKbps
	}
	if s.Tools.ProbeTimeout < 0 {
		return errors.New("tools.probe_timeout must not be negative")
	}
	if s.Server.ArchiveTTL <= 0 {
		s.Server.ArchiveTTL = def.Server.ArchiveTTL
	}
	if s.Server.ArchiveTTL < time.Second {
		return errors.New("server.archive_ttl must be at least 1s")
	}

	s.Audio.Codec = strings.ToLower(strings.TrimSpace(s.Audio.Codec))
	s.Archive.Order = strings.ToLower(strings.TrimSpace(s.Archive.Order))
	s.Archive.Playlist = strings.ToLower(strings.TrimSpace(s.Archive.Playlist))
	s.Log.Level = strings.ToLower(strings.TrimSpace(s.Log.Level))
	s.Log.Format = strings.ToLower(strings.TrimSpace(s.Log.Format))

	checks := []struct {
		key   string
		value string
		known []string
	}{
		{"audio.codec", s.Audio.Codec, Codecs},
		{"archive.order", s.Archive.Order, ArchiveOrders},
		{"archive.playlist", s.Archive.Playlist, PlaylistTypes},
		{"log.level", s.Log.Level, LogLevels},
		{"log.format", s.Log.Format, LogFormats},
	}
	for _, c := range checks {
		if !contains(c.known, c.value) {
			return fmt.Errorf("%s: unsupported value %q (want one of %s)", c.key, c.value, strings.Join(quoted(c.known), ", "))
		}
	}

	if s.History.Enabled && strings.TrimSpace(s.History.Path) == "" {
		return errors.New("history.path is required when history is enabled")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func quoted(list []string) []string {
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}
