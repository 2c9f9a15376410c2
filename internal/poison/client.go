package poison

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrExceptionManagerUnavailable is returned when the exception manager
// cannot be reached or answers with a non-2xx status.
var ErrExceptionManagerUnavailable = errors.New("exception manager unavailable")

// Response is the exception manager's decision for one reported failure.
type Response struct {
	SkipIt bool `json:"skipIt"`
	Peek   bool `json:"peek"`
	LogIt  bool `json:"logIt"`
}

type exceptionReport struct {
	MessageHash      string `json:"messageHash"`
	Service          string `json:"service"`
	Queue            string `json:"queue"`
	ExceptionClass   string `json:"exceptionClass"`
	ExceptionMessage string `json:"exceptionMessage"`
}

type skippedMessage struct {
	MessageHash    string `json:"messageHash"`
	MessagePayload string `json:"messagePayload"`
	Service        string `json:"service"`
	Queue          string `json:"queue"`
}

type peekReply struct {
	MessageHash    string `json:"messageHash"`
	MessagePayload string `json:"messagePayload"`
}

// Client talks to the external exception manager. Calls carry a short
// timeout: a stalled exception manager must degrade to the log outcome, not
// block a worker.
type Client struct {
	http *resty.Client
}

// NewClient creates an exception manager client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout),
	}
}

// ReportError reports one processing failure and returns the manager's
// decision.
func (c *Client) ReportError(
	ctx context.Context,
	messageHash string,
	service string,
	queue string,
	cause error,
) (*Response, error) {
	report := exceptionReport{
		MessageHash:      messageHash,
		Service:          service,
		Queue:            queue,
		ExceptionClass:   fmt.Sprintf("%T", cause),
		ExceptionMessage: cause.Error(),
	}

	var decision Response

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(report).
		SetResult(&decision).
		Post("/reportexception")
	if err != nil {
		return nil, errors.Join(ErrExceptionManagerUnavailable, err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d from /reportexception",
			ErrExceptionManagerUnavailable, resp.StatusCode())
	}

	return &decision, nil
}

// StoreSkippedMessage stores a full copy of the raw message with the
// exception manager, keyed by its hash, so a skipped message is never truly
// lost.
func (c *Client) StoreSkippedMessage(
	ctx context.Context,
	messageHash string,
	service string,
	queue string,
	raw []byte,
) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(skippedMessage{
			MessageHash:    messageHash,
			MessagePayload: string(raw),
			Service:        service,
			Queue:          queue,
		}).
		Post("/storeskippedmessage")
	if err != nil {
		return errors.Join(ErrExceptionManagerUnavailable, err)
	}

	if resp.IsError() {
		return fmt.Errorf("%w: status %d from /storeskippedmessage",
			ErrExceptionManagerUnavailable, resp.StatusCode())
	}

	return nil
}

// RespondToPeek returns the raw message body to the exception manager for
// inspection.
func (c *Client) RespondToPeek(ctx context.Context, messageHash string, raw []byte) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(peekReply{
			MessageHash:    messageHash,
			MessagePayload: string(raw),
		}).
		Post("/peekreply")
	if err != nil {
		return errors.Join(ErrExceptionManagerUnavailable, err)
	}

	if resp.IsError() {
		return fmt.Errorf("%w: status %d from /peekreply",
			ErrExceptionManagerUnavailable, resp.StatusCode())
	}

	return nil
}
