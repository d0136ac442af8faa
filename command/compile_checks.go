package command

import (
	"github.com/goliatone/go-access-proxy/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[CreateAccountMessage]       = (*CreateAccountCommand)(nil)
	_ gocmd.Commander[UpdateAccountMessage]       = (*UpdateAccountCommand)(nil)
	_ gocmd.Commander[SubmitAccessRequestMessage] = (*SubmitAccessRequestCommand)(nil)
	_ gocmd.Commander[TestConnectionMessage]      = (*TestConnectionCommand)(nil)

	_ AccountService       = (*core.Service)(nil)
	_ AccessRequestService = (*core.Service)(nil)
	_ ConnectionService    = (*core.Service)(nil)
)
