// Command trigger runs one scheduled-post sweep against a running server, the
// way the platform scheduler does.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"linkedpost/domain/dto"
	"linkedpost/domain/model"
	"linkedpost/infrastructure/configuration"
	"linkedpost/infrastructure/logger"
	"linkedpost/infrastructure/poller"
	httpHandler "linkedpost/interfaces/http"
)

func main() {
	endpoint := pflag.StringP("endpoint", "e", configuration.C.Poller.Endpoint, "scheduled-post trigger URL")
	timeout := pflag.DurationP("timeout", "t", 2*time.Minute, "request timeout")
	poll := pflag.Bool("poll", false, "identify as a client poll instead of the scheduler")
	pflag.Parse()

	os.Exit(run(context.Background(), os.Stdout, *endpoint, *timeout, !*poll))
}

func run(ctx context.Context, out io.Writer, endpoint string, timeout time.Duration, cron bool) int {
	p := &poller.Poller{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
	if cron {
		p.Header = http.Header{httpHandler.HeaderCronTrigger: []string{"true"}}
	}

	resp, err := p.Trigger(ctx)
	if err != nil {
		logger.GetLogger().WithField("endpoint", endpoint).WithField("error", err).Error("Trigger failed")
		return 1
	}
	printResponse(out, resp)
	return 0
}

func printResponse(out io.Writer, resp *dto.TriggerResponse) {
	message := resp.Message
	if message == "" {
		message = fmt.Sprintf("%d results", len(resp.Results))
	}
	fmt.Fprintln(out, message)
	for _, r := range resp.Results {
		switch r.Status {
		case model.SweepStatusSuccess:
			fmt.Fprintf(out, "  %s\t%s\t%s\n", r.PostID, r.Status, r.LinkedInPostID)
		default:
			fmt.Fprintf(out, "  %s\t%s\t%s\n", r.PostID, r.Status, r.Error)
		}
	}
}
