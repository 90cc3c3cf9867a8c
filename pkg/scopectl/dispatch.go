package scopectl

import (
	"context"
	"encoding/json"
	"os"

	"github.com/alertlogic/scopesync/pkg/cfnresponse"
	"github.com/alertlogic/scopesync/pkg/config"
	"github.com/alertlogic/scopesync/pkg/dispatch"
	"github.com/alertlogic/scopesync/pkg/events"
	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/common-fate/clio"
	"github.com/common-fate/clio/clierr"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var DispatchCommand = cli.Command{
	Name:  "dispatch",
	Usage: "Run the registration handler against a recorded SNS event",
	Flags: []cli.Flag{
		&cli.PathFlag{Name: "event", Usage: "SNS event, or a single lifecycle notification, as JSON", Required: true},
		&cli.BoolFlag{Name: "send-responses", Usage: "Answer custom resource requests on their ResponseURL instead of logging the response"},
	},
	Action: func(c *cli.Context) error {
		in, err := readSNSEvent(c.Path("event"))
		if err != nil {
			return clierr.New("unable to read the event", clierr.Error(err))
		}

		a, err := loadApp(c, config.RequireSecret)
		if err != nil {
			return err
		}
		d := a.Dispatcher()
		if !c.Bool("send-responses") {
			d.Callback = logCallback{}
		}

		results := d.Dispatch(c.Context, in)
		var rows [][]string
		failed := 0
		for _, r := range results {
			msg := ""
			if r.Err != nil {
				msg = r.Err.Error()
				failed++
			}
			rows = append(rows, []string{r.MessageID, string(r.RequestType), string(r.Outcome.Action), string(r.Status), msg})
		}
		printTable(os.Stdout, []string{"MESSAGE", "REQUEST", "ACTION", "RESPONSE", "ERROR"}, rows)
		if failed > 0 {
			return errors.Errorf("%d of %d records failed", failed, len(results))
		}
		return nil
	},
}

// readSNSEvent reads an SNS delivery. A file holding a bare notification is
// wrapped into a single record delivery.
func readSNSEvent(path string) (lambdaevents.SNSEvent, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return lambdaevents.SNSEvent{}, err
	}
	var in lambdaevents.SNSEvent
	if err := json.Unmarshal(b, &in); err != nil {
		return lambdaevents.SNSEvent{}, errors.Wrapf(err, "decoding %s", path)
	}
	if len(in.Records) > 0 {
		return in, nil
	}
	if _, err := events.Parse(string(b)); err != nil {
		return lambdaevents.SNSEvent{}, err
	}
	return lambdaevents.SNSEvent{Records: []lambdaevents.SNSEventRecord{
		{EventSource: "aws:sns", SNS: lambdaevents.SNSEntity{MessageID: "local", Message: string(b)}},
	}}, nil
}

type logCallback struct{}

func (logCallback) Send(ctx context.Context, e events.LifecycleEvent, status cfnresponse.Status, data any, physicalID string) {
	clio.Infow("custom resource response (not sent)", "status", status, "request", e.RequestID, "url", e.ResponseURL)
}

var _ dispatch.Callback = logCallback{}
