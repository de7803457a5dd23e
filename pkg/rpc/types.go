package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// CommandVersion is the current wire version for commands and responses.
const CommandVersion = 1

// CommandType identifies the requested operation
type CommandType string

const (
	CommandError                   CommandType = "ERROR"
	CommandAddClientSession        CommandType = "ADDCLIENTSESSION"
	CommandAddServerSession        CommandType = "ADDSERVERSESSION"
	CommandListClientSessions      CommandType = "LISTCLIENTSESSIONS"
	CommandListServerSessions      CommandType = "LISTSERVERSESSIONS"
	CommandCreateNym               CommandType = "CREATENYM"
	CommandRegisterNym             CommandType = "REGISTERNYM"
	CommandListNyms                CommandType = "LISTNYMS"
	CommandGetNym                  CommandType = "GETNYM"
	CommandIssueUnitDefinition     CommandType = "ISSUEUNITDEFINITION"
	CommandCreateAccount           CommandType = "CREATEACCOUNT"
	CommandCreateCompatibleAccount CommandType = "CREATECOMPATIBLEACCOUNT"
	CommandListAccounts            CommandType = "LISTACCOUNTS"
	CommandGetAccountBalance       CommandType = "GETACCOUNTBALANCE"
	CommandGetAccountActivity      CommandType = "GETACCOUNTACTIVITY"
	CommandSendPayment             CommandType = "SENDPAYMENT"
	CommandMoveFunds               CommandType = "MOVEFUNDS"
	CommandAcceptPendingPayments   CommandType = "ACCEPTPENDINGPAYMENTS"
	CommandAddContact              CommandType = "ADDCONTACT"
	CommandListContacts            CommandType = "LISTCONTACTS"
	CommandSendContactMessage      CommandType = "SENDCONTACTMESSAGE"
	CommandGetContactActivity      CommandType = "GETCONTACTACTIVITY"
	CommandImportHDSeed            CommandType = "IMPORTHDSEED"
	CommandListHDSeeds             CommandType = "LISTHDSEEDS"
	CommandGetHDSeed               CommandType = "GETHDSEED"
)

// StatusCode reports the outcome of one logical sub-operation
type StatusCode string

const (
	StatusInvalid       StatusCode = ""
	StatusSuccess       StatusCode = "SUCCESS"
	StatusQueued        StatusCode = "QUEUED"
	StatusUnimplemented StatusCode = "UNIMPLEMENTED"
	StatusBadSession    StatusCode = "BAD_SESSION"
	StatusError         StatusCode = "ERROR"
)

// SendPayment is the payload for SENDPAYMENT commands
type SendPayment struct {
	SourceAccount      string `json:"sourceaccount"`
	DestinationContact string `json:"destinationcontact,omitempty"`
	Amount             int64  `json:"amount"`
	Memo               string `json:"memo,omitempty"`
}

// AcceptPendingPayment is the payload for ACCEPTPENDINGPAYMENTS commands
type AcceptPendingPayment struct {
	DestinationAccount string `json:"destinationaccount"`
	Workflow           string `json:"workflow,omitempty"`
}

// CreateNym is the payload for CREATENYM commands
type CreateNym struct {
	Name string `json:"name"`
	Seed string `json:"seed,omitempty"`
}

// Command is a deserialized client request
type Command struct {
	Version uint32      `json:"version"`
	ID      string      `json:"id"`
	Type    CommandType `json:"type"`
	Session uint32      `json:"session"`

	// Owner is the nym on whose behalf the command acts
	Owner string `json:"owner,omitempty"`

	// AssociateNym lists nyms whose push notifications should be routed
	// to the connection this command arrived on
	AssociateNym []string `json:"associatenym,omitempty"`

	CreateNym            *CreateNym             `json:"createnym,omitempty"`
	SendPayment          *SendPayment           `json:"sendpayment,omitempty"`
	AcceptPendingPayment []AcceptPendingPayment `json:"acceptpendingpayment,omitempty"`

	UnitDefinition string `json:"unitdefinition,omitempty"`
	Account        string `json:"account,omitempty"`
	Contact        string `json:"contact,omitempty"`
	Message        string `json:"message,omitempty"`
	Seed           string `json:"seed,omitempty"`
	Server         string `json:"server,omitempty"`
}

// Status is the outcome of one logical sub-operation within a command
type Status struct {
	Index uint32     `json:"index"`
	Code  StatusCode `json:"code"`
}

// Task describes a unit of work accepted for asynchronous completion
type Task struct {
	Version uint32 `json:"version"`
	ID      string `json:"id"`
}

// Response is the reply to a single command
type Response struct {
	Version uint32      `json:"version"`
	ID      string      `json:"id"`
	Type    CommandType `json:"type"`
	Session uint32      `json:"session"`

	Status     []Status `json:"status"`
	Identifier []string `json:"identifier,omitempty"`
	Task       []Task   `json:"task,omitempty"`
}

// PrimaryStatus returns the code of the first status entry, or StatusInvalid
// if the response carries no status at all.
func (r *Response) PrimaryStatus() StatusCode {
	if len(r.Status) == 0 {
		return StatusInvalid
	}

	return r.Status[0].Code
}

// Queued reports whether the primary status indicates asynchronous completion
func (r *Response) Queued() bool {
	return r.PrimaryStatus() == StatusQueued
}

// Success reports whether the primary status indicates synchronous success
func (r *Response) Success() bool {
	return r.PrimaryStatus() == StatusSuccess
}

// DecodeCommand deserializes a wire command
func DecodeCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("failed to decode command: %w", err)
	}

	if cmd.Type == "" {
		return nil, fmt.Errorf("command has no type")
	}

	return &cmd, nil
}

// EncodeCommand serializes a command for the wire
func EncodeCommand(cmd *Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}

	return data, nil
}

// DecodeResponse deserializes a wire response
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &resp, nil
}

// EncodeResponse serializes a response for the wire
func EncodeResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}

	return data, nil
}

// Executor executes wallet commands on behalf of the broker. Implementations
// surface their own failures inside the response status list; a non-nil error
// is reserved for cases where no response could be produced at all.
type Executor interface {
	Execute(ctx context.Context, cmd *Command) (*Response, error)

	// AccountOwner resolves the nym controlling an account within the
	// given client session
	AccountOwner(clientIndex int, accountID string) (string, error)
}

// Sessions manages the logical client and server session contexts commands
// execute against. Sessions are indexed independently per class.
type Sessions interface {
	StartClient(ctx context.Context, index int) error
	StartServer(ctx context.Context, index int) error

	// Refresh synchronizes the state of one client session
	Refresh(ctx context.Context, clientIndex int) error
}
