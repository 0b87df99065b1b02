package mailchimp

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-formchimp/core"
)

// SubscriberHash is the member id Mailchimp derives from an email address.
func SubscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// Subscribe adds a new member. Mailchimp rejects addresses already in the
// audience.
func (c *Client) Subscribe(ctx context.Context, audienceID string, payload core.MemberPayload) (core.Member, error) {
	audienceID, err := requireAudienceID(audienceID)
	if err != nil {
		return core.Member{}, err
	}
	if strings.TrimSpace(payload.EmailAddress) == "" {
		return core.Member{}, core.ErrEmailRequired
	}
	var member core.Member
	if err := c.call(ctx, http.MethodPost, "lists/"+audienceID+"/members", nil, payload, &member); err != nil {
		return core.Member{}, err
	}
	return member, nil
}

// SubscribeOrUpdate creates the member or updates the existing one addressed
// by the subscriber hash of its email.
func (c *Client) SubscribeOrUpdate(ctx context.Context, audienceID string, payload core.MemberPayload) (core.Member, error) {
	audienceID, err := requireAudienceID(audienceID)
	if err != nil {
		return core.Member{}, err
	}
	if strings.TrimSpace(payload.EmailAddress) == "" {
		return core.Member{}, core.ErrEmailRequired
	}
	path := "lists/" + audienceID + "/members/" + SubscriberHash(payload.EmailAddress)
	var member core.Member
	if err := c.call(ctx, http.MethodPut, path, nil, payload, &member); err != nil {
		return core.Member{}, err
	}
	return member, nil
}

// DeleteAudienceMember permanently removes a member.
func (c *Client) DeleteAudienceMember(ctx context.Context, audienceID string, subscriberHash string) error {
	audienceID, err := requireAudienceID(audienceID)
	if err != nil {
		return err
	}
	subscriberHash = strings.TrimSpace(subscriberHash)
	if subscriberHash == "" {
		return fmt.Errorf("mailchimp: subscriber hash is required")
	}
	path := "lists/" + audienceID + "/members/" + subscriberHash + "/actions/delete-permanent"
	return c.call(ctx, http.MethodPost, path, nil, nil, nil)
}

// MockSubscribe subscribes a generated member built from the audience's
// required merge fields and deletes it again. The returned member exposes
// audience data points that no other endpoint reports.
func (c *Client) MockSubscribe(ctx context.Context, audienceID string) (core.Member, error) {
	fields, err := c.GetMergeFields(ctx, audienceID)
	if err != nil {
		return core.Member{}, err
	}
	payload := NewFakeSubscriber(nil).Generate(fields)
	member, err := c.Subscribe(ctx, audienceID, payload)
	if err != nil {
		return core.Member{}, err
	}
	if err := c.DeleteAudienceMember(ctx, audienceID, SubscriberHash(payload.EmailAddress)); err != nil {
		return member, fmt.Errorf("mailchimp: delete mock subscriber: %w", err)
	}
	return member, nil
}
