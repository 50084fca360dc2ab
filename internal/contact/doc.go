// Package contact turns an inbound contact-form payload into exactly one
// terminal outcome: throttled, rejected, silently dropped, or delivered by email.
// Checks run in a fixed order so that the cheap local ones (rate limit, payload
// shape, honeypot) finish before any call to the verification or email provider.
package contact
