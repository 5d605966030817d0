// Package mona is the Go client SDK for the Mona monitoring platform.
//
// A Client authenticates against Mona's token-issuing endpoint, keeps the
// access token fresh behind the scenes, and forwards message batches and
// configuration payloads to Mona's REST endpoints:
//
//	client, err := mona.New(mona.Config{APIKey: apiKey, Secret: secret})
//	if err != nil {
//		// missing or inconsistent configuration
//	}
//	err = client.Export(ctx, mona.SingleMessage{
//		ContextClass: "LOAN_APPLICATION",
//		ContextID:    "application-7",
//		Message:      map[string]any{"approved": true, "amount": 900},
//	})
//
// Clients are lightweight and safe for concurrent use. Token state is cached
// process wide per API key, so multiple clients constructed with the same
// key share one token and never authenticate redundantly.
//
// Callers that cannot block on network I/O can wrap a Client in an Exporter,
// which batches messages in the background through a worker pool.
package mona
