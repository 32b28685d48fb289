package emailsvc

import "github.com/trezcool/edumart/core"

// Service is a core.EmailService whose pending sends can be awaited before exiting.
type Service interface {
	core.EmailService
	Wait()
}

// NewService prints emails to stdout in debug mode and sends them with Sendgrid otherwise.
func NewService(conf *core.Config, logger core.Logger) Service {
	if conf.Debug {
		return NewConsoleService(conf)
	}
	return NewSendgridService(conf, logger)
}
