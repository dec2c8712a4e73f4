package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileTrail writes one JSON object per line to a size-rotated file.
type FileTrail struct {
	logger *zap.Logger
	sink   *lumberjack.Logger
}

var _ Trail = (*FileTrail)(nil)

// NewFileTrail opens (or creates) the JSONL audit file at path.
func NewFileTrail(path string, maxSizeMB, maxBackups int) (*FileTrail, error) {
	if path == "" {
		return nil, fmt.Errorf("audit log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	// Probe writability now so a bad path is a startup fault, not a skipped action later.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	_ = f.Close()

	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "logged_at",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(sink), zapcore.InfoLevel)
	return &FileTrail{logger: zap.New(core), sink: sink}, nil
}

func (t *FileTrail) Append(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r = stamp(r)
	fields := []zap.Field{
		zap.String("id", r.ID),
		zap.String("session_id", r.SessionID),
		zap.Int("iteration", r.Iteration),
		zap.String("event", string(r.Event)),
		zap.Time("time", r.Time),
	}
	if r.Action != "" {
		fields = append(fields, zap.String("action", r.Action))
	}
	if r.Coordinate != nil {
		fields = append(fields, zap.Ints("coordinate", r.Coordinate))
	}
	if r.Text != "" {
		fields = append(fields, zap.String("text", r.Text))
	}
	if r.Reasoning != "" {
		fields = append(fields, zap.String("reasoning", r.Reasoning))
	}
	if r.Thought != "" {
		fields = append(fields, zap.String("thought", r.Thought))
	}
	if r.Detail != "" {
		fields = append(fields, zap.String("detail", r.Detail))
	}
	t.logger.Info("audit", fields...)
	if err := t.logger.Sync(); err != nil {
		return fmt.Errorf("failed to flush audit record: %w", err)
	}
	return nil
}

func (t *FileTrail) Close() error {
	_ = t.logger.Sync()
	return t.sink.Close()
}
