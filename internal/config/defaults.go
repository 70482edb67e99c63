package config

const (
	defaultMediaDir             = "~/.local/share/reel/media"
	defaultDataDir              = "~/.local/share/reel/data"
	defaultLogDir               = "~/.local/share/reel/logs"
	defaultAPIBind              = "127.0.0.1:7480"
	defaultRetryLimit           = 3
	defaultRetryDelaySeconds    = 10
	defaultQueuePollSeconds     = 2
	defaultWorkers              = 2
	defaultTimelineCount        = 40
	defaultPublicBaseURL        = "http://localhost:7480/projects"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultLogLevel             = "info"
	defaultLogFormat            = "console"
)

var (
	defaultAllowedCodecs  = []string{"h264", "hevc", "vp8", "vp9", "av1"}
	defaultAllowedClients = []string{}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MediaDir: defaultMediaDir,
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Workflow: Workflow{
			RetryLimit:        defaultRetryLimit,
			RetryDelaySeconds: defaultRetryDelaySeconds,
			QueuePollSeconds:  defaultQueuePollSeconds,
			Workers:           defaultWorkers,
		},
		Media: Media{
			AllowedCodecs:        append([]string(nil), defaultAllowedCodecs...),
			AllowedClients:       append([]string(nil), defaultAllowedClients...),
			DefaultTimelineCount: defaultTimelineCount,
			PublicBaseURL:        defaultPublicBaseURL,
			FFmpegBinary:         defaultFFmpegBinary,
			FFprobeBinary:        defaultFFprobeBinary,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
