// Package clouddb provides a Go client for Cloud-DB, a hosted key-value
// database reached over HTTP with a per-database token.
//
// Basic usage:
//
//	client, err := clouddb.New("your-token", clouddb.WithAutoRetry(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if _, err := client.Set(ctx, "visits", 0); err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.Add(ctx, "visits", 1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("visits:", *result.Number)
//
// Failed operations return typed errors that match the package sentinels
// with errors.Is, for example:
//
//	_, err := client.Get(ctx, "missing")
//	if errors.Is(err, clouddb.ErrNotFound) {
//	    // the key does not exist
//	}
//
// The API rate limits tokens. Without auto-retry a rate-limited call returns
// an *OnCooldownError; with WithAutoRetry the request is re-sent after
// WithCooldownDelay, up to WithMaxCooldownRetries times.
package clouddb
