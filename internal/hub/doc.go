// Package hub relays recorder commands to page-side capture agents over
// a server-sent-events stream and collects the screenshots agents post
// back. It is the concrete transport behind the recorder's
// ScreenshotSource and AgentChannel ports. One agent connection exists
// per target; capture requests are correlated with their uploads by id.
package hub
