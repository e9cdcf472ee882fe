// Package remote creates repositories on hosting platforms.
//
// A Gateway wraps the REST API of one platform. GitHub is served by go-github
// and GitLab by the official GitLab client. Both answer the same questions:
// does a repository exist, and create it if not. Platform detection, URL
// parsing and API URL derivation are plain functions so the planner can use
// them without a gateway.
//
// Every API call runs through telemetry.InstrumentGatewayCall, so calls are
// traced and counted when a Telemetry is attached to the context.
package remote
