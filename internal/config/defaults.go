package config

const (
	defaultLogDir              = "~/.local/share/retro/logs"
	defaultLockDir             = "~/.local/share/retro/locks"
	defaultSessionFile         = "~/.config/retro/session.json"
	defaultFFmpegBinary        = "ffmpeg"
	defaultVideoDevice         = "/dev/video0"
	defaultVideoFormat         = "v4l2"
	defaultAudioDevice         = "default"
	defaultAudioFormat         = "pulse"
	defaultVideoCodec          = "libvpx"
	defaultAudioCodec          = "libopus"
	defaultContainer           = "webm"
	defaultContentType         = "video/webm"
	defaultChunkSize           = 64 * 1024
	defaultHaltTimeoutSeconds  = 10
	defaultSubmissionBaseURL   = "http://127.0.0.1:8000"
	defaultSubmissionPath      = "/features/retrospectives/upload"
	defaultSubmissionField     = "file"
	defaultSubmissionTimeout   = 120
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	maxChunkSize               = 16 * 1024 * 1024
	defaultAcquireTimeoutValue = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:      defaultLogDir,
			LockDir:     defaultLockDir,
			SessionFile: defaultSessionFile,
		},
		Capture: Capture{
			FFmpegBinary:          defaultFFmpegBinary,
			VideoDevice:           defaultVideoDevice,
			VideoFormat:           defaultVideoFormat,
			AudioDevice:           defaultAudioDevice,
			AudioFormat:           defaultAudioFormat,
			VideoCodec:            defaultVideoCodec,
			AudioCodec:            defaultAudioCodec,
			Container:             defaultContainer,
			ContentType:           defaultContentType,
			ChunkSize:             defaultChunkSize,
			AcquireTimeoutSeconds: defaultAcquireTimeoutValue,
			HaltTimeoutSeconds:    defaultHaltTimeoutSeconds,
		},
		Submission: Submission{
			BaseURL:        defaultSubmissionBaseURL,
			UploadPath:     defaultSubmissionPath,
			FieldName:      defaultSubmissionField,
			TimeoutSeconds: defaultSubmissionTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
