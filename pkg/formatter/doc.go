// Package formatter orchestrates car listing formatting through GigaChat.
//
// A listing is raw free-form seller text. The service estimates the token
// cost of the request, checks it against the quota tracker, sends the text
// to GigaChat with the car-expert system prompt, and records the actual
// token usage reported by the API. Denied requests never reach the API and
// never consume quota.
package formatter
