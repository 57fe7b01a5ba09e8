package notify

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
)

// FileSink writes the HTML body of each report to a file, or to Writer when
// Path is empty. Used for dry runs.
type FileSink struct {
	Path   string
	Writer io.Writer
	// Raw writes the full composed mail instead of the HTML body.
	Raw    bool
	Logger *zap.SugaredLogger
}

// Send writes msg.
func (s FileSink) Send(ctx context.Context, msg Message) error {
	data := msg.HTML
	if s.Raw {
		composed, err := Compose(msg)
		if err != nil {
			return errors.Mark(err, errors.ErrDelivery)
		}
		data = composed
	}

	if s.Path == "" {
		w := s.Writer
		if w == nil {
			w = os.Stdout
		}
		if _, err := w.Write(data); err != nil {
			return errors.Mark(errors.Wrap(err, "failed to write report"), errors.ErrDelivery)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to create directory for %s", s.Path), errors.ErrDelivery)
	}
	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return errors.Mark(errors.Wrapf(err, "failed to write report to %s", s.Path), errors.ErrDelivery)
	}

	if s.Logger != nil {
		logger.FromContext(ctx, s.Logger).Infow("Report written",
			logger.FieldPath, s.Path)
	}
	return nil
}
