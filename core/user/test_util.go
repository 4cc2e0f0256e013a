package user

import (
	"github.com/Shiv1431/MedAR/core"
)

type serviceMock struct {
	service
}

// NewServiceMock builds a Service for tests; pair it with the console email
// service mock so mails are recorded synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			conf:    conf,
		},
	}
}
