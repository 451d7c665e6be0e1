package dispatch

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	httpclient "job-notifier/internal/common/http"
	"job-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Channel delivers a rendered digest to one address.
type Channel interface {
	Name() string
	Send(ctx context.Context, address string, d Digest) error
}

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// TelegramSender is the subset of *tgbotapi.BotAPI the Telegram channel needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// EmailChannel sends digests through AWS SES.
type EmailChannel struct {
	client SESService
	from   string
}

func NewEmailChannel(client SESService, from string) *EmailChannel {
	return &EmailChannel{client: client, from: from}
}

func (c *EmailChannel) Name() string { return models.ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, address string, d Digest) error {
	_, err := c.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{address},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(d.Subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(d.Body)},
			},
		},
		Source: aws.String(c.from),
	})
	return err
}

// SMSChannel sends a condensed digest through AWS SNS.
type SMSChannel struct {
	client   SNSService
	senderID string
}

func NewSMSChannel(client SNSService, senderID string) *SMSChannel {
	return &SMSChannel{client: client, senderID: senderID}
}

func (c *SMSChannel) Name() string { return models.ChannelSMS }

func (c *SMSChannel) Send(ctx context.Context, address string, d Digest) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(address),
		Message:     aws.String(smsText(d)),
	}
	if c.senderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(c.senderID),
			},
		}
	}
	_, err := c.client.Publish(ctx, input)
	return err
}

// smsText keeps one short line per job.
func smsText(d Digest) string {
	var b strings.Builder
	b.WriteString(d.Subject)
	for i, j := range d.Jobs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, j.Title)
		if j.CompanyName != "" {
			fmt.Fprintf(&b, " @ %s", j.CompanyName)
		}
	}
	return b.String()
}

// TelegramChannel sends digests as HTML formatted bot messages. The address
// is the numeric chat id.
type TelegramChannel struct {
	bot TelegramSender
}

func NewTelegramChannel(bot TelegramSender) *TelegramChannel {
	return &TelegramChannel{bot: bot}
}

// NewTelegramBot connects to the Bot API with token. Bot API calls go
// through the shared outbound client so throttled sends are retried.
func NewTelegramBot(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpclient.NewClient(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return bot, nil
}

func (c *TelegramChannel) Name() string { return models.ChannelTelegram }

func (c *TelegramChannel) Send(_ context.Context, address string, d Digest) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", address, err)
	}
	msg := tgbotapi.NewMessage(chatID, telegramText(d))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err = c.bot.Send(msg)
	return err
}

func telegramText(d Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(d.Subject))
	for i, j := range d.Jobs {
		fmt.Fprintf(&b, "\n%d. <b>%s</b>", i+1, html.EscapeString(j.Title))
		if j.CompanyName != "" {
			fmt.Fprintf(&b, "\n   %s", html.EscapeString(j.CompanyName))
		}
		if j.Location != "" {
			fmt.Fprintf(&b, " | %s", html.EscapeString(j.Location))
		}
		if j.ExperienceRaw != "" {
			fmt.Fprintf(&b, " | %s", html.EscapeString(j.ExperienceRaw))
		}
	}
	return b.String()
}
