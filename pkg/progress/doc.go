// Package progress records recipient status transitions and serves live campaign snapshots.
//
// # Tracker
//
// The [Tracker] is the in-process progress sink. Its lifecycle per campaign is:
//
//   - Seed: load the persisted campaign and its recipients when a dispatcher starts or
//     a campaign is inspected without one
//   - Publish: apply one recipient transition and append it to the recent-events window
//   - Update: refresh the aggregate counters and campaign status
//   - Forget: drop the state once the campaign reaches a terminal status
//
// Readers call [Tracker.Snapshot], which holds a read lock only long enough to copy state,
// so polling never stalls dispatch. The snapshot carries the status breakdown, the retrying
// recipients with their next attempt time, the failed recipients with their reasons, and the
// recent events, newest last:
//
//	tracker := progress.NewTracker(progress.WithRecentEvents(100))
//	tracker.Seed(c, recipients)
//	tracker.Publish(ctx, campaign.Event{CampaignID: c.ID, RecipientID: r.ID,
//	    From: campaign.RecipientSending, To: campaign.RecipientSent})
//
//	snap, ok := tracker.Snapshot(c.ID)
//	fmt.Printf("%.1f%% sent=%d failed=%d\n", snap.Percentage, snap.Sent, snap.Failed)
//
// A campaign that was forgotten or never seeded has no snapshot; callers rebuild it from
// the store.
//
// # Forwarding
//
// Events are also handed to a [Consumer] through a [Forwarder] registered with
// [WithForwarder]. Forwarding is fire-and-forget: when the consumer is slow the buffer fills
// and further events are dropped with a warning, and consumer errors are only logged.
//
//	broker, err := analytics.NewAMQP(cfg.Analytics, analytics.WithLogger(log))
//	fwd := progress.NewForwarder(broker, progress.WithBuffer(1024), progress.WithLogger(log))
//	defer fwd.Close(ctx)
//
//	tracker := progress.NewTracker(progress.WithForwarder(fwd))
//
// [Forwarder.Dropped] reports how many events were discarded.
package progress
