package hub

import "github.com/roach88/wedplan/internal/entity"

// Op names a client request.
type Op string

const (
	OpListen   Op = "listen"
	OpUnlisten Op = "unlisten"
	OpFetch    Op = "fetch"
	OpAdd      Op = "add"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
)

// ResponseType distinguishes replies from pushed snapshots.
type ResponseType string

const (
	TypeAck      ResponseType = "ack"
	TypeError    ResponseType = "error"
	TypeSnapshot ResponseType = "snapshot"
)

// Error codes carried in error responses.
const (
	CodeDisabled          = "disabled"
	CodeNotFound          = "not_found"
	CodeUnknownCollection = "unknown_collection"
	CodeBadRequest        = "bad_request"
	CodeInternal          = "internal"
)

// Request is one client message. ID is chosen by the client and echoed in
// the reply; for listen it also names the subscription.
type Request struct {
	ID         string        `json:"id"`
	Op         Op            `json:"op"`
	Collection string        `json:"collection"`
	Doc        string        `json:"doc,omitempty"`
	Payload    entity.Record `json:"payload,omitempty"`
	Listen     string        `json:"listen,omitempty"`
}

// Response is a reply to a request (ack or error) or a pushed snapshot.
type Response struct {
	ID         string          `json:"id,omitempty"`
	Type       ResponseType    `json:"type"`
	Listen     string          `json:"listen,omitempty"`
	Collection string          `json:"collection,omitempty"`
	Records    []entity.Record `json:"records,omitempty"`
	Error      *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
