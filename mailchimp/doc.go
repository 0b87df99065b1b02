// Package mailchimp is a small client for the Mailchimp Marketing API v3.
//
// Metadata reads (audiences, merge fields, segments, interest categories and
// members) are memoized per client. Per-audience reads keep only the most
// recently requested audience. All requests go through a core.TransportAdapter,
// by default the REST adapter from the transport package.
package mailchimp
