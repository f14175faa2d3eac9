// Package api provides HTTP client functionality for communicating with the
// Cloud-DB API. It handles authentication, request/response serialization,
// error classification and the cooldown retry loop.
//
// # Client Creation
//
// [New] takes the database token and functional options. The token is sent
// verbatim in the Authorization header on every request.
//
// # Sessions
//
// The underlying *http.Client lives in a [Session]. It is created on the
// first request unless one is injected with [WithHTTPClient], shared by
// concurrent requests, and released by [Client.Close]. Injected clients stay
// owned by the caller.
//
// # Responses
//
// A 200 response must carry a JSON object, which is returned as
// map[string]any with numbers decoded as json.Number. Any other status is
// classified from its status code and decoded body:
//
//   - 403, or a JSON body whose message mentions "Cooldown": rate limited.
//   - 404: the key does not exist.
//   - 400: the request was rejected, with a dedicated message when the
//     stored value is not a number.
//   - anything else: an unclassified HTTP error.
//
// # Cooldown Retry
//
// When [CooldownPolicy.AutoRetry] is set, rate-limited requests are re-issued
// after a fixed delay (1s by default), at most [CooldownPolicy.MaxRetries]
// times. No other failure is retried.
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use. Multiple goroutines may call
// methods on a single Client simultaneously.
package api
