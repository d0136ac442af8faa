package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-access-proxy/core"
)

const (
	TypeCreateAccount       = "accessproxy.command.account.create"
	TypeUpdateAccount       = "accessproxy.command.account.update"
	TypeSubmitAccessRequest = "accessproxy.command.access_request.submit"
	TypeTestConnection      = "accessproxy.command.connection.test"
)

type CreateAccountMessage struct {
	Request core.CreateAccountRequest
}

func (CreateAccountMessage) Type() string { return TypeCreateAccount }

func (m CreateAccountMessage) Validate() error {
	if strings.TrimSpace(m.Request.Name) == "" {
		return core.InvalidField("command", "name", "account name is required")
	}
	return nil
}

type UpdateAccountMessage struct {
	Request core.UpdateAccountRequest
}

func (UpdateAccountMessage) Type() string { return TypeUpdateAccount }

func (m UpdateAccountMessage) Validate() error {
	if strings.TrimSpace(m.Request.IdentityID) == "" {
		return core.InvalidField("command", "identity", "identity id is required")
	}
	for index, change := range m.Request.Changes {
		if _, err := core.ParseChangeOp(string(change.Op)); err != nil {
			return core.InvalidValue(err, fmt.Sprintf("command: change %d is invalid", index))
		}
	}
	return nil
}

type SubmitAccessRequestMessage struct {
	Request core.SubmitRequest
}

func (SubmitAccessRequestMessage) Type() string { return TypeSubmitAccessRequest }

func (m SubmitAccessRequestMessage) Validate() error {
	if strings.TrimSpace(m.Request.IdentityID) == "" {
		return core.InvalidField("command", "identity_id", "identity id is required")
	}
	if len(m.Request.EntitlementIDs) == 0 {
		return core.InvalidField("command", "entitlement_ids", "at least one entitlement id is required")
	}
	if err := m.Request.Type.Validate(); err != nil {
		return core.InvalidValue(err, "command: request type is invalid")
	}
	return nil
}

type TestConnectionMessage struct{}

func (TestConnectionMessage) Type() string { return TypeTestConnection }

func (TestConnectionMessage) Validate() error { return nil }
