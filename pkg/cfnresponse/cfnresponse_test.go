package cfnresponse

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alertlogic/scopesync/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method      string
	contentType string
	body        Response
}

func responseServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var res Response
		require.NoError(t, json.Unmarshal(b, &res))
		got = append(got, captured{method: r.Method, contentType: r.Header.Get("Content-Type"), body: res})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func testEvent(url string) events.LifecycleEvent {
	return events.LifecycleEvent{
		RequestType:       events.RequestCreate,
		ResponseURL:       url,
		StackID:           "arn:aws:cloudformation:us-east-1:111122223333:stack/onboard/abc",
		RequestID:         "req-1",
		LogicalResourceID: "Registration",
	}
}

func TestSend(t *testing.T) {
	srv, got := responseServer(t, http.StatusOK)
	s := &Sender{HTTPClient: srv.Client(), LogStream: "2026/10/16/[$LATEST]abc"}

	s.Send(context.Background(), testEvent(srv.URL), StatusFailed, map[string]string{"Status": "boom"}, PhysicalResourceID)

	require.Len(t, *got, 1)
	c := (*got)[0]
	assert.Equal(t, http.MethodPut, c.method)
	assert.Equal(t, "", c.contentType)
	assert.Equal(t, StatusFailed, c.body.Status)
	assert.Equal(t, "See the details in CloudWatch Log Stream: 2026/10/16/[$LATEST]abc", c.body.Reason)
	assert.Equal(t, PhysicalResourceID, c.body.PhysicalResourceID)
	assert.Equal(t, "arn:aws:cloudformation:us-east-1:111122223333:stack/onboard/abc", c.body.StackID)
	assert.Equal(t, "req-1", c.body.RequestID)
	assert.Equal(t, "Registration", c.body.LogicalResourceID)
	assert.False(t, c.body.NoEcho)
	assert.Equal(t, map[string]any{"Status": "boom"}, c.body.Data)
}

func TestNewResponseDefaults(t *testing.T) {
	s := &Sender{LogStream: "stream"}
	res := s.NewResponse(testEvent(""), StatusSuccess, nil, "")
	assert.Equal(t, "stream", res.PhysicalResourceID)
	assert.Equal(t, map[string]any{}, res.Data)
}

func TestSendFailuresAreNotFatal(t *testing.T) {
	srv, got := responseServer(t, http.StatusForbidden)
	s := &Sender{HTTPClient: srv.Client(), LogStream: "stream"}

	// neither call may panic; failures are only logged
	s.Send(context.Background(), testEvent(srv.URL), StatusSuccess, nil, PhysicalResourceID)
	s.Send(context.Background(), testEvent(""), StatusSuccess, nil, PhysicalResourceID)
	assert.Len(t, *got, 1)

	_, err := s.put(context.Background(), srv.URL, s.NewResponse(testEvent(srv.URL), StatusSuccess, nil, ""))
	assert.ErrorContains(t, err, "403")
}
