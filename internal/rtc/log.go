package rtc

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/agent-launcher/internal/core/domain"
)

// LogGateway is a SessionGateway that only logs. It is used when no bridge
// is configured.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway returns a gateway writing to logger, or slog.Default when nil.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Join(ctx context.Context, params domain.JoinParams) error {
	g.logger.InfoContext(ctx, "rtc join",
		slog.String("room_url", params.URL),
		slog.Bool("has_token", params.Token != ""),
		slog.Bool("video_source", params.VideoSource),
		slog.Bool("start_audio_off", params.StartAudioOff))
	return nil
}

func (g *LogGateway) Leave(ctx context.Context) error {
	g.logger.InfoContext(ctx, "rtc leave")
	return nil
}

func (g *LogGateway) Destroy(ctx context.Context) error {
	g.logger.InfoContext(ctx, "rtc destroy")
	return nil
}
