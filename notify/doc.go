// Package notify delivers lifecycle events to humans and other systems.
//
// Core types:
//   - Notifier: Interface for sending notifications
//   - Event: Notification event with type, message, and metadata
//   - DeliveryError: non-2xx answer from a webhook
//
// Implementations:
//   - SlackNotifier: Posts the rendered message to a Slack incoming webhook
//   - WebhookNotifier: Posts the JSON event to a generic webhook
//   - NATSNotifier: Publishes the JSON event on <subject>.<type>
//   - LogNotifier: Logs notifications
//   - MultiNotifier: Combines multiple notifiers
//   - NopNotifier: No-op notifier
//
// Example usage:
//
//	notifier := notify.NewSlackNotifier(webhookURL,
//	    notify.WithSlackUsername("ingestflow"),
//	)
//	err := notifier.Notify(ctx, notify.Event{
//	    Type:    notify.EventIngested,
//	    Message: "Ingested x.tar.gz for org/software#5",
//	})
package notify
