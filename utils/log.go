package utils

import (
	"context"

	"echo-helper/model"
	"echo-helper/utils/logger"

	"go.uber.org/zap"
)

type LogLevel string

const (
	Info  LogLevel = "INFO"
	Warn  LogLevel = "WARN"
	Error LogLevel = "ERROR"
)

// NoticeSender posts a notice into a channel and returns the message ID.
type NoticeSender interface {
	SendNotice(ctx context.Context, channelID string, n model.Notice) (string, error)
}

// ChannelLogger mirrors operator-facing audit lines into a Discord channel.
// A nil logger or empty channel only writes to the process log.
type ChannelLogger struct {
	sender    NoticeSender
	channelID string
}

func NewChannelLogger(sender NoticeSender, channelID string) *ChannelLogger {
	return &ChannelLogger{sender: sender, channelID: channelID}
}

func getColor(level LogLevel) int {
	switch level {
	case Info:
		return 3066993 // Green
	case Warn:
		return 15105570 // Orange
	case Error:
		return 15158332 // Red
	default:
		return 3447003 // Blue
	}
}

func (l *ChannelLogger) send(ctx context.Context, level LogLevel, module, operation, extraInfo string) {
	fields := []zap.Field{zap.String("module", module), zap.String("operation", operation), zap.String("info", extraInfo)}
	switch level {
	case Error:
		logger.Error("audit", fields...)
	case Warn:
		logger.Warn("audit", fields...)
	default:
		logger.Info("audit", fields...)
	}

	if l == nil || l.sender == nil || l.channelID == "" {
		return
	}
	notice := model.Notice{
		Title: string(level) + " Log",
		Color: getColor(level),
		Fields: []model.NoticeField{
			{Name: "Module", Value: module},
			{Name: "Operation", Value: operation},
			{Name: "Info", Value: extraInfo},
		},
	}
	if _, err := l.sender.SendNotice(ctx, l.channelID, notice); err != nil {
		logger.Warn("Failed to send audit line to log channel", zap.Error(err), zap.String("channel", l.channelID))
	}
}

func (l *ChannelLogger) Info(ctx context.Context, module, operation, extraInfo string) {
	l.send(ctx, Info, module, operation, extraInfo)
}

func (l *ChannelLogger) Warn(ctx context.Context, module, operation, extraInfo string) {
	l.send(ctx, Warn, module, operation, extraInfo)
}

func (l *ChannelLogger) Error(ctx context.Context, module, operation, extraInfo string) {
	l.send(ctx, Error, module, operation, extraInfo)
}
