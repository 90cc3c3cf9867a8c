// Package cfnresponse answers CloudFormation custom resource requests.
package cfnresponse

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/alertlogic/scopesync/pkg/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/common-fate/clio"
	"github.com/pkg/errors"
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// PhysicalResourceID is the fixed physical id reported for every request
// answered by the handlers.
const PhysicalResourceID = "CustomResourcePhysicalID"

// Response is the document PUT to the request's ResponseURL.
type Response struct {
	Status             Status `json:"Status"`
	Reason             string `json:"Reason"`
	PhysicalResourceID string `json:"PhysicalResourceId"`
	StackID            string `json:"StackId"`
	RequestID          string `json:"RequestId"`
	LogicalResourceID  string `json:"LogicalResourceId"`
	NoEcho             bool   `json:"NoEcho"`
	Data               any    `json:"Data"`
}

// Sender delivers responses. Delivery failures are logged and never
// returned, the requester times out on its own.
type Sender struct {
	HTTPClient *http.Client
	// LogStream is named in the response reason so that operators can find
	// the invocation's logs.
	LogStream string
}

func NewSender() *Sender {
	return &Sender{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		LogStream:  lambdacontext.LogStreamName,
	}
}

// NewResponse builds the response to e. An empty physicalID falls back to
// the log stream name.
func (s *Sender) NewResponse(e events.LifecycleEvent, status Status, data any, physicalID string) Response {
	if physicalID == "" {
		physicalID = s.LogStream
	}
	if data == nil {
		data = map[string]any{}
	}
	return Response{
		Status:             status,
		Reason:             "See the details in CloudWatch Log Stream: " + s.LogStream,
		PhysicalResourceID: physicalID,
		StackID:            e.StackID,
		RequestID:          e.RequestID,
		LogicalResourceID:  e.LogicalResourceID,
		Data:               data,
	}
}

func (s *Sender) Send(ctx context.Context, e events.LifecycleEvent, status Status, data any, physicalID string) {
	res := s.NewResponse(e, status, data, physicalID)
	code, err := s.put(ctx, e.ResponseURL, res)
	if err != nil {
		clio.Errorw("failed to send custom resource response", "status", status, "request", e.RequestID, "error", err)
		return
	}
	clio.Infow("sent custom resource response", "status", status, "request", e.RequestID, "http_status", code)
}

func (s *Sender) put(ctx context.Context, url string, res Response) (int, error) {
	if url == "" {
		return 0, errors.New("request has no ResponseURL")
	}
	body, err := json.Marshal(res)
	if err != nil {
		return 0, errors.Wrap(err, "encoding response")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	// the presigned response URL is signed without a content type
	req.Header.Set("Content-Type", "")

	hc := s.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, errors.Errorf("response rejected with %s: %s", resp.Status, string(b))
	}
	return resp.StatusCode, nil
}
