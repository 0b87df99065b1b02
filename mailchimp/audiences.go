package mailchimp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-formchimp/core"
)

type link struct {
	Rel    string `json:"rel"`
	Href   string `json:"href"`
	Method string `json:"method"`
}

type listsResponse struct {
	Lists      []core.Audience `json:"lists"`
	TotalItems int             `json:"total_items"`
}

type mergeFieldsResponse struct {
	MergeFields []core.MergeField `json:"merge_fields"`
	TotalItems  int               `json:"total_items"`
}

type segmentsResponse struct {
	Segments   []core.Segment `json:"segments"`
	TotalItems int            `json:"total_items"`
}

type membersResponse struct {
	Members    []core.Member `json:"members"`
	TotalItems int           `json:"total_items"`
}

type categoryPayload struct {
	core.InterestCategory
	Links []link `json:"_links"`
}

type categoriesResponse struct {
	Categories []categoryPayload `json:"categories"`
	TotalItems int               `json:"total_items"`
}

type interestsResponse struct {
	Interests  []core.Interest `json:"interests"`
	TotalItems int             `json:"total_items"`
}

func (c *Client) GetAudiences(ctx context.Context) ([]core.Audience, error) {
	c.mu.Lock()
	if c.hasLists {
		out := append([]core.Audience(nil), c.audiences...)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	var res listsResponse
	if err := c.call(ctx, http.MethodGet, "lists", c.listQuery(), nil, &res); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.audiences = append([]core.Audience(nil), res.Lists...)
	c.hasLists = true
	c.mu.Unlock()
	return res.Lists, nil
}

// GetAudience fetches one audience. It is never memoized.
func (c *Client) GetAudience(ctx context.Context, audienceID string) (core.Audience, error) {
	audienceID, err := requireAudienceID(audienceID)
	if err != nil {
		return core.Audience{}, err
	}
	var audience core.Audience
	if err := c.call(ctx, http.MethodGet, "lists/"+audienceID, nil, nil, &audience); err != nil {
		return core.Audience{}, err
	}
	return audience, nil
}

func (c *Client) GetAudienceMembers(ctx context.Context, audienceID string) ([]core.Member, error) {
	audienceID, err := requireAudienceID(audienceID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if members, ok := c.members.get(audienceID); ok {
		c.mu.Unlock()
		return append([]core.Member(nil), members...), nil
	}
	c.mu.Unlock()

	var res membersResponse
	if err := c.call(ctx, http.MethodGet, "lists/"+audienceID+"/members", c.listQuery(), nil, &res); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.members.set(audienceID, append([]core.Member(nil), res.Members...))
	c.mu.Unlock()
	return res.Members, nil
}

func (c *Client) GetMergeFields(ctx context.Context, audienceID string) ([]core.MergeField, error) {
	audienceID, err := requireAudienceID(audienceID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if fields, ok := c.mergeFields.get(audienceID); ok {
		c.mu.Unlock()
		return append([]core.MergeField(nil), fields...), nil
	}
	c.mu.Unlock()

	var res mergeFieldsResponse
	if err := c.call(ctx, http.MethodGet, "lists/"+audienceID+"/merge-fields", c.listQuery(), nil, &res); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.mergeFields.set(audienceID, append([]core.MergeField(nil), res.MergeFields...))
	c.mu.Unlock()
	return res.MergeFields, nil
}

func (c *Client) GetSegments(ctx context.Context, audienceID string) ([]core.Segment, error) {
	audienceID, err := requireAudienceID(audienceID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if segments, ok := c.segments.get(audienceID); ok {
		c.mu.Unlock()
		return append([]core.Segment(nil), segments...), nil
	}
	c.mu.Unlock()

	var res segmentsResponse
	if err := c.call(ctx, http.MethodGet, "lists/"+audienceID+"/segments", c.listQuery(), nil, &res); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.segments.set(audienceID, append([]core.Segment(nil), res.Segments...))
	c.mu.Unlock()
	return res.Segments, nil
}

// GetTags returns the static segments of an audience, which Mailchimp
// presents as tags.
func (c *Client) GetTags(ctx context.Context, audienceID string) ([]core.Segment, error) {
	segments, err := c.GetSegments(ctx, audienceID)
	if err != nil {
		return nil, err
	}
	tags := make([]core.Segment, 0, len(segments))
	for _, segment := range segments {
		if segment.Type == core.SegmentTypeStatic {
			tags = append(tags, segment)
		}
	}
	return tags, nil
}

// GetInterestCategories returns the categories of an audience with their
// interests loaded through each category's "interests" link.
func (c *Client) GetInterestCategories(ctx context.Context, audienceID string) ([]core.InterestCategory, error) {
	audienceID, err := requireAudienceID(audienceID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if categories, ok := c.categories.get(audienceID); ok {
		c.mu.Unlock()
		return cloneCategories(categories), nil
	}
	c.mu.Unlock()

	var res categoriesResponse
	if err := c.call(ctx, http.MethodGet, "lists/"+audienceID+"/interest-categories", c.listQuery(), nil, &res); err != nil {
		return nil, err
	}

	categories := make([]core.InterestCategory, 0, len(res.Categories))
	for _, payload := range res.Categories {
		category := payload.InterestCategory
		endpoint := interestsPath(audienceID, payload)
		var interests interestsResponse
		if err := c.call(ctx, http.MethodGet, endpoint, c.listQuery(), nil, &interests); err != nil {
			return nil, err
		}
		category.Interests = interests.Interests
		categories = append(categories, category)
	}

	c.mu.Lock()
	c.categories.set(audienceID, cloneCategories(categories))
	c.mu.Unlock()
	return categories, nil
}

func interestsPath(audienceID string, payload categoryPayload) string {
	for _, item := range payload.Links {
		if item.Rel == "interests" && strings.TrimSpace(item.Href) != "" {
			return relativePath(item.Href)
		}
	}
	return "lists/" + audienceID + "/interest-categories/" + payload.ID + "/interests"
}

func cloneCategories(in []core.InterestCategory) []core.InterestCategory {
	out := make([]core.InterestCategory, 0, len(in))
	for _, category := range in {
		category.Interests = append([]core.Interest(nil), category.Interests...)
		out = append(out, category)
	}
	return out
}

func requireAudienceID(audienceID string) (string, error) {
	audienceID = strings.TrimSpace(audienceID)
	if audienceID == "" {
		return "", fmt.Errorf("mailchimp: audience id is required")
	}
	return audienceID, nil
}
