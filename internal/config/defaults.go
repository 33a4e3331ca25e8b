package config

const (
	defaultDataDir              = "~/.local/share/stagecue"
	defaultLogDir               = "~/.local/share/stagecue/logs"
	defaultPreviewCacheDir      = "~/.cache/stagecue/previews"
	defaultSocketPath           = "~/.local/share/stagecue/stagecued.sock"
	defaultFFplayBinary         = "ffplay"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultStartupVolume        = 80
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultTerminateGraceMillis = 1500
	defaultPreviewWorkers       = 2
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:         defaultDataDir,
			LogDir:          defaultLogDir,
			PreviewCacheDir: defaultPreviewCacheDir,
			SocketPath:      defaultSocketPath,
		},
		Players: Players{
			FFplayBinary:  defaultFFplayBinary,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			StartupVolume: defaultStartupVolume,
		},
		Output: Output{
			VideoFullscreen: true,
			MonitorHotplug:  true,
		},
		Engine: Engine{
			TerminateGraceMillis: defaultTerminateGraceMillis,
			PreviewWorkers:       defaultPreviewWorkers,
			AutoloadOnSelect:     true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
