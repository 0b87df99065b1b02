package mailchimp

import (
	"github.com/goliatone/go-formchimp/core"
	"github.com/goliatone/go-formchimp/transport"
)

// NewClientFactory returns a core.MailchimpClientFactory building clients
// from cfg. Clients share one transport unless opts replace it.
func NewClientFactory(cfg core.MailchimpConfig, opts ...Option) core.MailchimpClientFactory {
	shared := transport.NewRESTAdapterFromConfig(nil, cfg)
	base := []Option{WithConfig(cfg), WithTransport(shared)}
	return func(apiKey string) (core.MailchimpAPI, error) {
		client, err := NewClient(apiKey, append(append([]Option(nil), base...), opts...)...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
