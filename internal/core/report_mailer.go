package core

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// ReportMailer delivers a copy of an end-of-shift report to the
// administrator's mailbox.
type ReportMailer interface {
	SendReportCopy(ctx context.Context, driverName, report string) error
}

type SESReportMailer struct {
	client    *ses.Client
	sender    string
	recipient string
}

func NewSESReportMailer(client *ses.Client, sender, recipient string) *SESReportMailer {
	return &SESReportMailer{client: client, sender: sender, recipient: recipient}
}

func (s *SESReportMailer) SendReportCopy(ctx context.Context, driverName, report string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: []string{s.recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("Shift report: %s", driverName)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(report),
				},
			},
		},
	}

	_, err := s.client.SendEmail(ctx, input)
	return err
}
