// Package core contains the form to Mailchimp connector domain: the processor
// configuration key scheme, the submission mapper, the configuration builder
// and the service orchestrating them. Adapters depend on this package; core
// must not depend on the Mailchimp client or transport packages.
package core
