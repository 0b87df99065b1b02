// Command formchimp operates the form to Mailchimp connector against a
// sqlite or postgres database: module settings, per-form processor
// configuration, submissions, the activity log and data maintenance.
package main
