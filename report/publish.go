package report

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
	"github.com/teranos/batchwatch/notify"
)

// Publisher runs a report, renders it and hands it to a notifier.
type Publisher struct {
	runner   *Runner
	notifier notify.Notifier
	logger   *zap.SugaredLogger
}

// NewPublisher creates a publisher delivering through n.
func NewPublisher(r *Runner, n notify.Notifier, log *zap.SugaredLogger) *Publisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Publisher{runner: r, notifier: n, logger: log}
}

// Runner returns the underlying report runner.
func (p *Publisher) Runner() *Runner {
	return p.runner
}

// Publish runs one report and delivers it. The returned result is non-nil
// whenever the run itself succeeded, even if delivery failed.
func (p *Publisher) Publish(ctx context.Context, opts Options) (*Result, error) {
	res, err := p.runner.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithRunID(ctx, res.RunID)
	log := logger.FromContext(ctx, p.logger)

	renderer := Renderer{Title: res.Config.Report.Title}
	if path := res.Config.Report.LogoPath; path != "" {
		logo, err := LoadLogo(path)
		if err != nil {
			log.Warnw("Rendering report without logo",
				logger.FieldPath, path,
				logger.FieldError, err)
		} else {
			renderer.Logo = logo
		}
	}

	body, err := renderer.Render(res)
	if err != nil {
		return res, err
	}

	msg := MessageFor(res, body)
	if err := p.notifier.Send(ctx, msg); err != nil {
		return res, errors.Wrap(err, "failed to deliver report")
	}
	return res, nil
}

// MessageFor addresses a rendered report using the run's effective mail
// settings.
func MessageFor(res *Result, body []byte) notify.Message {
	mail := res.Config.Mail
	return notify.Message{
		From:    mail.From,
		To:      mail.To,
		Cc:      mail.Cc,
		Subject: res.Subject,
		HTML:    body,
		Date:    res.Window.End,
	}
}
